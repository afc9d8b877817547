// 文件: pkg/ledger/money.go
// 定点数价格工具
//
// 价格和余额统一用分 (1/100 元) 的 int64 表示, 避免浮点在
// 反复 格式化/解析 之间产生精度漂移。股数直接用整数

package ledger

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// PriceScale 价格精度: 保留两位小数
const PriceScale = 100

var errBadPrice = errors.New("malformed price")

// ParsePrice 把十进制价格字符串解析成分
// "125.3" → 12530, "7" → 700。超过两位的小数直接截断 (与历史库保持一致)
func ParsePrice(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errBadPrice
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart = s[:i]
		fracPart = s[i+1:]
	}
	if intPart == "" && fracPart == "" {
		return 0, errBadPrice
	}

	var v int64
	if intPart != "" {
		n, err := strconv.ParseInt(intPart, 10, 64)
		if err != nil {
			return 0, errBadPrice
		}
		// 换算成分后必须仍在 int64 内
		if n > (math.MaxInt64-PriceScale+1)/PriceScale {
			return 0, errBadPrice
		}
		v = n * PriceScale
	}

	// 小数部分只取前两位, 不足补零。只认数字:
	// ParseInt 会吞掉 "1.-5" 这种夹带符号的写法
	if fracPart != "" {
		if len(fracPart) > 2 {
			fracPart = fracPart[:2]
		}
		var n int64
		for _, c := range []byte(fracPart) {
			if c < '0' || c > '9' {
				return 0, errBadPrice
			}
			n = n*10 + int64(c-'0')
		}
		if len(fracPart) == 1 {
			n *= 10
		}
		v += n
	}

	if neg {
		v = -v
	}
	return v, nil
}

// FormatPrice 把分渲染成两位小数的十进制字符串
func FormatPrice(p int64) string {
	neg := p < 0
	if neg {
		p = -p
	}
	s := strconv.FormatInt(p/PriceScale, 10) + "." +
		string([]byte{'0' + byte(p%PriceScale/10), '0' + byte(p%PriceScale%10)})
	if neg {
		return "-" + s
	}
	return s
}

// ParseAmount 解析有符号股数
func ParseAmount(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}
