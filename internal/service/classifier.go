package service

import (
	"unicode/utf16"

	"github.com/d60-Lab/void-feed/internal/model"
)

// Classify 将帖子 ID 确定性地映射到一种删除变体：
// 对 UTF-16 码元做 h = h*31 + c（int32 溢出回绕），取 |h| mod 4。
func Classify(postID string) model.Variant {
	var h int32
	for _, c := range utf16.Encode([]rune(postID)) {
		h = h*31 + int32(c)
	}
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return model.Variants[abs%int64(len(model.Variants))]
}
