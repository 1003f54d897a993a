package main

import (
	"github.com/ColonelBlimp/alarmdetect/cmd"
	"github.com/ColonelBlimp/alarmdetect/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
