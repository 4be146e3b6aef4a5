package main

import (
	"log"

	"github.com/KunalSalunkhe12/heartbeat.chat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
