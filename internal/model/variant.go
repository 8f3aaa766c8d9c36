package model

import "time"

// Variant 删除动画/音效变体
type Variant string

const (
	VariantSlide   Variant = "slide"
	VariantExplode Variant = "explode"
	VariantFade    Variant = "fade"
	VariantGlitch  Variant = "glitch"
)

// Variants 固定顺序，分类器按下标取值
var Variants = [...]Variant{VariantSlide, VariantExplode, VariantFade, VariantGlitch}

// Duration 动画时长；调用方需等待这么久才算从视图中移除
func (v Variant) Duration() time.Duration {
	switch v {
	case VariantGlitch:
		return 800 * time.Millisecond
	case VariantFade:
		return 600 * time.Millisecond
	case VariantExplode:
		return 500 * time.Millisecond
	default:
		return 400 * time.Millisecond
	}
}
