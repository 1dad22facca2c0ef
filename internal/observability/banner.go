package observability

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

var startTime = time.Now()

const (
	colorReset    = "\033[0m"
	colorPurple   = "\033[35m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
	colorYellow   = "\033[93m"
)

var radarFrames = []string{"◜", "◝", "◞", "◟"}
var radarIdx = 0

// termMu synchronizes ALL terminal output so that the cursor
// save/restore in PrintLiveStatus can never be interrupted by a log write.
var termMu sync.Mutex

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// termWriter is a mutex-guarded io.Writer for log output.
type termWriter struct{}

func (tw termWriter) Write(p []byte) (n int, err error) {
	termMu.Lock()
	defer termMu.Unlock()
	return os.Stderr.Write(p)
}

// NewTermWriter returns an io.Writer suitable for log.SetOutput().
// It serialises writes with PrintLiveStatus via termMu.
func NewTermWriter() *termWriter {
	return &termWriter{}
}

func PrintBanner() {
	fmt.Print("\033[2J\033[H")

	banner := `
    ______                      __
   / ____/___  __  ______  ____/ /______  __
  / /_  / __ \/ / / / __ \/ __  / ___/ / / /
 / __/ / /_/ / /_/ / / / / /_/ / /  / /_/ /
/_/    \____/\__,_/_/ /_/\__,_/_/   \__, /
                                   /____/
        >> VENTURE PIPELINE ORCHESTRATOR <<
`

	width := termWidth()
	for _, l := range strings.Split(banner, "\n") {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Printf("%s%s%s\n", strings.Repeat(" ", padding), colorNeonCyan+l, colorReset)
	}
}

func InitializeTerminal() {
	// Header/Logo area: 1-9, status line: 10, gap: 11, logs: 12+
	fmt.Print("\033[12;r")
	fmt.Print("\033[12;1H")
}

func CleanupTerminal() {
	fmt.Print("\033[r\033[2J\033[H")
}

// phaseStyle picks the icon and color for a pipeline phase.
func phaseStyle(phase string) (string, string) {
	switch {
	case phase == "idle":
		return "💤", colorReset
	case phase == "error":
		return "🛑", colorNeonMag
	case phase == "finished":
		return "✅", colorNeonCyan
	case strings.HasPrefix(phase, "checkpoint"):
		return "✋", colorYellow
	default:
		return "⚙️", colorNeonCyan
	}
}

// StatusLine renders the one-line dashboard without terminal escapes.
func StatusLine(s Status) string {
	icon, _ := phaseStyle(s.Phase)
	stage := s.ActiveStage
	if stage == "" {
		stage = "Waiting..."
	}
	if len(stage) > 25 {
		stage = stage[:22] + "..."
	}
	return fmt.Sprintf("%s %-26s | %s | %s tokens | %.2fg CO2",
		icon, s.Phase, stage, humanize.Comma(int64(s.Tokens)), s.CO2Grams)
}

func PrintLiveStatus() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime).Round(time.Second)
	memMB := float64(m.Alloc) / 1024 / 1024

	s := GetStatus()

	pulseIcon := "🔴"
	pulseColor := colorNeonMag
	delta := time.Since(s.LastHeartbeat)
	if delta < 40*time.Second {
		pulseIcon = "🟢"
		pulseColor = colorNeonCyan
	} else if delta < 90*time.Second {
		pulseIcon = "🟡"
		pulseColor = colorPurple
	}

	_, phaseColor := phaseStyle(s.Phase)

	radar := " "
	if s.Phase != "idle" && s.ActiveStage != "" {
		radar = radarFrames[radarIdx]
		radarIdx = (radarIdx + 1) % len(radarFrames)
	}

	totalMB := float64(m.Sys) / 1024 / 1024
	memPercent := memMB / totalMB

	barWidth := 20
	filled := clamp(int(memPercent*float64(barWidth)), 0, barWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("▒", barWidth-filled)

	statusStr := fmt.Sprintf(
		"\033[s\033[10;1H\033[K%s[%s] %s%s%s %s%s%s %s%s%s [%v] [%s %.1fMB]\033[u",
		colorReset,
		s.LastHeartbeat.Format("15:04:05"),
		pulseColor, pulseIcon, colorReset,
		phaseColor, StatusLine(s), colorReset,
		colorPurple, radar, colorReset,
		uptime,
		bar, memMB,
	)

	termMu.Lock()
	fmt.Print(statusStr)
	termMu.Unlock()
}
