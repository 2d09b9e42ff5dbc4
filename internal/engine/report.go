package engine

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ivlev/storyreel/internal/system"
	"github.com/ivlev/storyreel/internal/video"
)

type phaseTimings struct {
	preload  time.Duration
	playback time.Duration
	outro    time.Duration
	finalize time.Duration
	total    time.Duration
}

// framesCounter is implemented by sinks that count captured frames.
type framesCounter interface {
	FramesCaptured() int64
}

func (r *render) printReport(res *Result, sink video.Sink) {
	var captured int64 = -1
	if fc, ok := sink.(framesCounter); ok {
		captured = fc.FramesCaptured()
	}
	painted := 0
	for _, s := range res.Schedule {
		painted += s.Frames
	}
	snap := system.Snapshot()

	report := fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Render: %s\n"+
			"Total Time: %.2fs\n"+
			"Preload: %.2fs\n"+
			"Playback: %.2fs\n"+
			"Outro: %.2fs\n"+
			"Finalize: %.2fs\n"+
			"Timeline: %.2fs\n"+
			"Frames Painted: %d\n"+
			"Frames Captured: %d\n"+
			"Output: %s\n"+
			"Process RSS: %s (CPU %.1f%%)\n"+
			"Host Memory: %.1f%% used, %s available\n"+
			"----------------------------\n",
		r.cfg.BuildVersion, res.RenderID,
		r.timings.total.Seconds(), r.timings.preload.Seconds(), r.timings.playback.Seconds(),
		r.timings.outro.Seconds(), r.timings.finalize.Seconds(),
		res.TimelineLength(), painted, captured,
		humanize.Bytes(uint64(len(res.Artifact.Data))),
		humanize.Bytes(snap.ProcessRSS), snap.ProcessCPU,
		snap.HostUsedPct, humanize.Bytes(snap.HostAvailBytes),
	)
	fmt.Print(report)

	// Логирование в файл
	logEntry := fmt.Sprintf("[%s] Build: %s | Story: %s | Scenes: %d | Total: %.2fs | Timeline: %.2fs | Frames: %d | Size: %s\n",
		time.Now().Format("2006-01-02 15:04:05"),
		r.cfg.BuildVersion,
		res.Artifact.FileName,
		len(r.story.Scenes),
		r.timings.total.Seconds(),
		res.TimelineLength(),
		captured,
		humanize.Bytes(uint64(len(res.Artifact.Data))),
	)

	f, err := os.OpenFile("benchmark.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		f.WriteString(logEntry)
		f.Close()
	} else {
		fmt.Printf("[!] Не удалось записать benchmark.log: %v\n", err)
	}
}
