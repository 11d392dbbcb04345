package batch

import "image"

// Job 一次处理任务，启动时确定，只消费一次
type Job struct {
	Input              string
	Output             string
	KeepOriginalColors bool
}

var defaultJobs = []Job{
	// logo_icon：黑色反白，用于深色背景
	{Input: "logo_icon.jpg", Output: "logo_icon_transparent.png", KeepOriginalColors: false},
	// logo_text：保留原色（深蓝 + 蓝色），只去白底
	{Input: "logo_text.jpg", Output: "logo_text_transparent.png", KeepOriginalColors: true},
}

// DefaultJobs 返回内置任务列表的副本
func DefaultJobs() []Job {
	return append([]Job(nil), defaultJobs...)
}

type Status int

const (
	Pending Status = iota
	Succeeded
	Skipped
	Failed
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "OK"
	case Skipped:
		return "SKIPPED"
	case Failed:
		return "ERROR"
	default:
		return "PENDING"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Result struct {
	Job    Job
	Status Status
	Err    error  `json:"-"`
	Reason string `json:",omitempty"`
	Width  int
	Height int
	// Content 输出图里不透明区域的 bounding box，全透明时为空
	Content image.Rectangle
}

type Report struct {
	RunID   string
	Results []Result
}

// Counts 按状态统计
func (r *Report) Counts() map[Status]int {
	counts := make(map[Status]int, 4)
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}
