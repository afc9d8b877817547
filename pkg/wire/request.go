// 文件: pkg/wire/request.go
// 请求文法解析
//
// <transactions account="…"> 内是有序的命令序列:
//   <order sym="…" amount="…" limit="…"/>
//   <cancel id="…"/>
//   <query id="…"/>
// amount/limit/id 保留原始字符串, 数值合法性属于业务校验不在这里做;
// 形状不对 (未知元素、缺属性) 是协议错误, 整批拒绝

package wire

import (
	"encoding/xml"
	"errors"
)

var ErrMalformedRequest = errors.New("malformed request document")

// Command 三种命令的闭集
type Command interface{ isCommand() }

type PlaceOrder struct {
	Sym    string
	Amount string
	Limit  string
}

type Cancel struct {
	ID string
}

type Query struct {
	ID string
}

func (PlaceOrder) isCommand() {}
func (Cancel) isCommand()     {}
func (Query) isCommand()      {}

// Batch 一个会话账户的有序命令批次
type Batch struct {
	Account  string
	Commands []Command
}

type transactionsDoc struct {
	XMLName xml.Name  `xml:"transactions"`
	Account string    `xml:"account,attr"`
	Nodes   []reqNode `xml:",any"`
}

// reqNode 子元素的属性并集, 按元素名分流
type reqNode struct {
	XMLName xml.Name
	Sym     string `xml:"sym,attr"`
	Amount  string `xml:"amount,attr"`
	Limit   string `xml:"limit,attr"`
	ID      string `xml:"id,attr"`
}

// ParseRequest 解析一帧请求体
func ParseRequest(body []byte) (*Batch, error) {
	var doc transactionsDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, errors.Join(ErrMalformedRequest, err)
	}
	if doc.Account == "" {
		return nil, ErrMalformedRequest
	}

	batch := &Batch{Account: doc.Account}
	for _, node := range doc.Nodes {
		switch node.XMLName.Local {
		case "order":
			if node.Sym == "" || node.Amount == "" || node.Limit == "" {
				return nil, ErrMalformedRequest
			}
			batch.Commands = append(batch.Commands, PlaceOrder{
				Sym:    node.Sym,
				Amount: node.Amount,
				Limit:  node.Limit,
			})
		case "cancel":
			if node.ID == "" {
				return nil, ErrMalformedRequest
			}
			batch.Commands = append(batch.Commands, Cancel{ID: node.ID})
		case "query":
			if node.ID == "" {
				return nil, ErrMalformedRequest
			}
			batch.Commands = append(batch.Commands, Query{ID: node.ID})
		default:
			return nil, ErrMalformedRequest
		}
	}
	return batch, nil
}
