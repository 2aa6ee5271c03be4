//go:build windows

package beep

// No audio playback on Windows - cues disabled.

func Init()      {}
func PlayStart() {}
func PlayEnd()   {}
func PlayError() {}
func PlaySaved() {}
