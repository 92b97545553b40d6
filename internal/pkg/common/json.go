package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// ErrTrailingJSON 文件後仍有其他 JSON 值
var ErrTrailingJSON = errors.New("unexpected data after JSON document")

// ParseJSONBytesStrict 解析單一 JSON 文件，禁止未知欄位與尾端多餘資料
func ParseJSONBytesStrict(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return ErrTrailingJSON
	}
	return nil
}
