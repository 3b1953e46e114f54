package utils

import "time"

// Clock 时钟抽象
// 过期判定（报价48小时窗口、拍卖截止时间）都依赖墙上时钟，
// 通过注入时钟使其在测试中可确定性地推进
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock 真实系统时钟
var SystemClock Clock = systemClock{}
