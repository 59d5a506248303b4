package main

import "form-agent/internal/bootstrap"

func main() {
	bootstrap.NewApp().Run()
}
