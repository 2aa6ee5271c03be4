// Package doctor runs environment diagnostics: can we open storage, is
// the API key set, does audio capture work, and does a short dictation
// come back as structured exercises.
package doctor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"voicefit/audio"
	"voicefit/capture"
	"voicefit/config"
	"voicefit/gateway"
	"voicefit/store"
)

// Run executes the diagnostic checks and returns an exit code (0=all
// pass, 1=any fail). The microphone check is interactive and only runs
// when the earlier checks pass.
func Run(cfg *config.Config) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("voicefit doctor - system diagnostics")
	fmt.Println("====================================")

	allPass := true

	if !checkStorage(cfg.StoragePath) {
		allPass = false
	}
	keyOK := checkAPIKey()
	if !keyOK {
		allPass = false
	}
	ctx, audioOK := checkAudio()
	if !audioOK {
		allPass = false
	}
	if ctx != nil {
		defer ctx.Close()
	}

	if allPass {
		if !checkDictation(ctx, cfg) {
			allPass = false
		}
	} else {
		fmt.Println()
		fmt.Println("[4/4] Dictation check skipped (earlier checks failed)")
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkStorage(path string) bool {
	fmt.Println()
	fmt.Println("[1/4] Session storage")
	fmt.Printf("  Path: %s\n", path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("  PASS: no session file yet (will be created on first save)")
		return true
	}

	if _, err := os.ReadFile(path); err != nil {
		fmt.Printf("  FAIL: cannot read session file: %v\n", err)
		return false
	}
	s := store.Open(path)
	if s.Len() == 0 {
		fmt.Println("  WARN: session file exists but no sessions parsed (see diagnostics log)")
		return true
	}
	fmt.Printf("  PASS: %d session(s) loaded\n", s.Len())
	return true
}

func checkAPIKey() bool {
	fmt.Println()
	fmt.Println("[2/4] Gemini API key")
	if os.Getenv("GEMINI_API_KEY") == "" {
		fmt.Println("  FAIL: GEMINI_API_KEY is not set")
		return false
	}
	fmt.Println("  PASS: GEMINI_API_KEY is set")
	return true
}

func checkAudio() (audio.Context, bool) {
	fmt.Println()
	fmt.Println("[3/4] Audio capture")

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return nil, false
	}

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return ctx, false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return ctx, false
	}

	fmt.Printf("  PASS: %d capture device(s)\n", len(devices))
	for _, d := range devices {
		fmt.Printf("    - %s\n", d.Name)
	}
	return ctx, true
}

func checkDictation(ctx audio.Context, cfg *config.Config) bool {
	fmt.Println()
	fmt.Println("[4/4] Dictation and extraction")

	reader := bufio.NewReader(os.Stdin)
	device := pickDevice(ctx, cfg.AudioDevice, reader)

	ext := gateway.New(cfg.GeminiModel, cfg.Language)

	fmt.Println()
	fmt.Print("Press Enter and describe an exercise for 5 seconds (e.g. \"three sets of ten push ups\")...")
	reader.ReadString('\n')

	ctrl := capture.New(ctx, device)
	events, err := ctrl.Start()
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return false
	}
	go func() {
		for range events {
		}
	}()

	fmt.Print("  Recording")
	tick := time.NewTicker(500 * time.Millisecond)
	stop := time.After(5 * time.Second)
loop:
	for {
		select {
		case <-tick.C:
			fmt.Print(".")
		case <-stop:
			break loop
		}
	}
	tick.Stop()

	res, err := ctrl.Stop()
	fmt.Println(" done")
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return false
	}
	if len(res.Audio) == 0 {
		fmt.Println("  FAIL: no audio captured")
		return false
	}
	fmt.Printf("  Recorded %.1f KB, extracting...\n", float64(len(res.Audio))/1024)

	result, err := ext.Extract(context.Background(), res.Audio, res.MIMEType)
	if err != nil {
		fmt.Printf("  FAIL: extraction error: %v\n", err)
		return false
	}

	fmt.Printf("\n  Heard: %s\n", result.RawTranscription)
	if len(result.Exercises) == 0 {
		fmt.Println("  Exercises: (none recognized)")
	} else {
		for _, ex := range result.Exercises {
			fmt.Printf("  Exercise: %s\n", describeExercise(ex))
		}
	}
	fmt.Println()

	confirmReader := bufio.NewReader(os.Stdin)
	fmt.Print("Is this correct? [y/n]: ")
	confirm, _ := confirmReader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))

	if confirm == "y" || confirm == "yes" {
		fmt.Println("  PASS: extraction verified by user")
		return true
	}
	fmt.Println("  FAIL: extraction not confirmed")
	return false
}

func pickDevice(ctx audio.Context, preferred string, reader *bufio.Reader) *audio.DeviceInfo {
	devices, err := ctx.Devices()
	if err != nil || len(devices) == 0 {
		return nil
	}

	if preferred != "" {
		for i := range devices {
			if strings.EqualFold(devices[i].Name, preferred) {
				fmt.Printf("Using configured device: %s\n", devices[i].Name)
				return &devices[i]
			}
		}
	}

	if len(devices) == 1 {
		fmt.Printf("Using device: %s\n", devices[0].Name)
		return &devices[0]
	}

	fmt.Println()
	fmt.Println("Select input device:")
	for i, d := range devices {
		fmt.Printf("  %d. %s\n", i+1, d.Name)
	}
	fmt.Printf("Choice [1-%d]: ", len(devices))

	choice, _ := reader.ReadString('\n')
	choice = strings.TrimSpace(choice)
	idx := 0
	if choice != "" {
		fmt.Sscanf(choice, "%d", &idx)
		idx--
	}
	if idx < 0 || idx >= len(devices) {
		fmt.Printf("Invalid choice, using %s\n", devices[0].Name)
		return &devices[0]
	}
	fmt.Printf("Selected: %s\n", devices[idx].Name)
	return &devices[idx]
}

func describeExercise(ex store.Exercise) string {
	parts := []string{ex.Name}
	if ex.Sets != nil {
		parts = append(parts, fmt.Sprintf("%d sets", *ex.Sets))
	}
	if ex.Reps != nil {
		parts = append(parts, fmt.Sprintf("%d reps", *ex.Reps))
	}
	if ex.Weight != nil {
		parts = append(parts, fmt.Sprintf("%g kg", *ex.Weight))
	}
	if ex.DurationMin != nil {
		parts = append(parts, fmt.Sprintf("%g min", *ex.DurationMin))
	}
	return strings.Join(parts, ", ")
}
