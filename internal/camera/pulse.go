package camera

import "math"

// PulseSim 生成手指覆盖摄像头时的亮度脉搏波（非临床），采样率 fs Hz
//
// 波形：主波（高斯）叠加一个升余弦，慢速呼吸基线，再加少量确定性噪声。
// 输出大致在 [0,1]。
type PulseSim struct {
	fs    float64
	bpm   float64
	noise float64
	phase float64
	t     float64
}

// NewPulseSim fs 通常为相机帧率，bpm 40-180，noise 0.0-0.05
func NewPulseSim(fs, bpm, noise float64) *PulseSim {
	return &PulseSim{fs: fs, bpm: bpm, noise: noise}
}

// Next 返回下一个采样并推进时间
func (s *PulseSim) Next() float64 {
	s.phase += s.bpm / 60.0 / s.fs
	if s.phase >= 1.0 {
		s.phase -= 1.0
	}
	s.t += 1.0 / s.fs

	systolic := 0.6 * gauss(s.phase, 0.30, 0.12)
	volume := 0.4 * (0.5 - 0.5*math.Cos(2*math.Pi*s.phase))
	breathing := 0.03 * math.Sin(2*math.Pi*0.25*s.t)
	n := s.noise * (2*fract(math.Sin(12345.678*s.t)*9876.543) - 1)

	return systolic + volume + breathing + n
}

func gauss(x, mu, sigma float64) float64 {
	z := (x - mu) / sigma
	return math.Exp(-0.5 * z * z)
}

func fract(x float64) float64 { return x - math.Floor(x) }
