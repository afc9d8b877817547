// 文件: pkg/ledger/money_test.go

package ledger

import "testing"

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"125.3", 12530, true},
		{"7", 700, true},
		{"0.07", 7, true},
		{"6.00", 600, true},
		{"  5.5 ", 550, true},
		{"0.999", 99, true}, // 第三位小数截断
		{"-2.5", -250, true},
		{"+3", 300, true},
		{".5", 50, true},
		{"0", 0, true},
		{"", 0, false},
		{".", 0, false},
		{"abc", 0, false},
		{"1.2x", 0, false},
		{"1.-5", 0, false}, // 小数部分夹带符号
		{"1.+5", 0, false},
		{"1. 5", 0, false},
		{"92233720368547757.99", 9223372036854775799, true}, // 换算上限内
		{"92233720368547758", 0, false},                     // 换算成分后越界
		{"9223372036854775807", 0, false},
	}

	for _, tc := range cases {
		got, err := ParsePrice(tc.in)
		if tc.ok && err != nil {
			t.Errorf("ParsePrice(%q): unexpected error %v", tc.in, err)
			continue
		}
		if !tc.ok {
			if err == nil {
				t.Errorf("ParsePrice(%q): expected error, got %d", tc.in, got)
			}
			continue
		}
		if got != tc.want {
			t.Errorf("ParsePrice(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestFormatPrice(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{12530, "125.30"},
		{700, "7.00"},
		{7, "0.07"},
		{0, "0.00"},
		{-250, "-2.50"},
	}

	for _, tc := range cases {
		if got := FormatPrice(tc.in); got != tc.want {
			t.Errorf("FormatPrice(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// 解析和渲染来回走不丢精度
func TestPriceRoundTrip(t *testing.T) {
	for _, p := range []int64{0, 1, 99, 100, 12530, 999999} {
		got, err := ParsePrice(FormatPrice(p))
		if err != nil {
			t.Fatalf("round trip %d: %v", p, err)
		}
		if got != p {
			t.Errorf("round trip %d: got %d", p, got)
		}
	}
}

func TestParseAmount(t *testing.T) {
	if n, err := ParseAmount("-42"); err != nil || n != -42 {
		t.Errorf("ParseAmount(-42) = %d, %v", n, err)
	}
	if _, err := ParseAmount("4.2"); err == nil {
		t.Error("ParseAmount(4.2): expected error")
	}
	if _, err := ParseAmount(""); err == nil {
		t.Error("ParseAmount(empty): expected error")
	}
}
