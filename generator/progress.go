package generator

import (
	"fmt"
	"io"
	"os"

	"github.com/cheggaaa/pb/v3"
)

// progress 超级瓦片进度条，关闭时所有方法为空操作
type progress struct {
	bar *pb.ProgressBar
}

func newProgress(enabled bool, total int64, level uint32, w io.Writer) *progress {
	if !enabled || total <= 0 {
		return &progress{}
	}
	if w == nil {
		w = os.Stderr
	}
	bar := pb.New64(total)
	bar.SetWriter(w)
	bar.Set("prefix", fmt.Sprintf("Level %d : ", level))
	bar.Start()
	return &progress{bar: bar}
}

func (p *progress) increment() {
	if p != nil && p.bar != nil {
		p.bar.Increment()
	}
}

func (p *progress) finish() {
	if p != nil && p.bar != nil {
		p.bar.Finish()
	}
}
