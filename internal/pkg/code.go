package pkg

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// NumericCode 生成 n 位数字验证码，高位补零
func NumericCode(n int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	x, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", n, x), nil
}
