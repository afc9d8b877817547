// 文件: pkg/wire/response.go
// 响应片段
//
// 每条命令恰好产生一个片段, 按提交顺序拼接:
//   <opened id sym amount limit/>
//   <error …>原因</error>
//   <status id> <executed…/>* [<open…/> | <canceled…/>] </status>
//   <canceled id> <executed…/>* <canceled…/> </canceled>

package wire

import (
	"bytes"
	"encoding/xml"
)

// Fragment 响应片段的闭集
type Fragment interface{ isFragment() }

// Opened 订单已受理
type Opened struct {
	XMLName xml.Name `xml:"opened"`
	ID      int64    `xml:"id,attr"`
	Sym     string   `xml:"sym,attr"`
	Amount  int64    `xml:"amount,attr"` // 原始数量的绝对值
	Limit   string   `xml:"limit,attr"`
}

// ErrorFragment 单条命令被拒
// 下单错误回显 sym/amount/limit, 撤单/查询错误回显 id
type ErrorFragment struct {
	XMLName xml.Name `xml:"error"`
	Sym     string   `xml:"sym,attr,omitempty"`
	Amount  string   `xml:"amount,attr,omitempty"`
	Limit   string   `xml:"limit,attr,omitempty"`
	ID      string   `xml:"id,attr,omitempty"`
	Reason  string   `xml:",chardata"`
}

// ExecutedLine 一笔成交
type ExecutedLine struct {
	XMLName xml.Name `xml:"executed"`
	Shares  int64    `xml:"shares,attr"`
	Price   string   `xml:"price,attr"`
	Time    int64    `xml:"time,attr"`
}

// OpenLine 未成交余量
type OpenLine struct {
	XMLName xml.Name `xml:"open"`
	Shares  int64    `xml:"shares,attr"`
}

// CanceledLine 撤单记录
type CanceledLine struct {
	XMLName xml.Name `xml:"canceled"`
	Shares  int64    `xml:"shares,attr"`
	Time    int64    `xml:"time,attr"`
}

// Status 查询结果: 成交历史 + 余量或撤单记录 (互斥)
type Status struct {
	XMLName  xml.Name `xml:"status"`
	ID       int64    `xml:"id,attr"`
	Executed []ExecutedLine
	Open     *OpenLine
	Canceled *CanceledLine
}

// Canceled 撤单结果: 成交历史 + 末尾的撤单记录
type Canceled struct {
	XMLName  xml.Name `xml:"canceled"`
	ID       int64    `xml:"id,attr"`
	Executed []ExecutedLine
	Record   CanceledLine
}

func (Opened) isFragment()        {}
func (ErrorFragment) isFragment() {}
func (Status) isFragment()        {}
func (Canceled) isFragment()      {}

// Render 按提交顺序把片段序列化成响应体
func Render(fragments []Fragment) ([]byte, error) {
	var buf bytes.Buffer
	for _, frag := range fragments {
		out, err := xml.MarshalIndent(frag, "", "  ")
		if err != nil {
			return nil, err
		}
		buf.Write(out)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
