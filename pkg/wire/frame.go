// 文件: pkg/wire/frame.go
// 线路分帧: 十进制 ASCII 长度 + '\n' + 定长报文体

package wire

import (
	"bufio"
	"errors"
	"io"
	"strconv"
)

// MaxFrameSize 单帧上限, 防御恶意长度
const MaxFrameSize = 1 << 20

var (
	ErrMalformedFrame = errors.New("malformed frame header")
	ErrFrameTooLarge  = errors.New("frame exceeds size limit")
)

// ReadFrame 读取一帧报文体
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	header, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}

	n, err := strconv.Atoi(header[:len(header)-1])
	if err != nil || n < 0 {
		return nil, ErrMalformedFrame
	}
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// WriteFrame 写出一帧
func WriteFrame(w io.Writer, body []byte) error {
	if _, err := w.Write([]byte(strconv.Itoa(len(body)) + "\n")); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
