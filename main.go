package main

import (
	"samplr/app"
)

func main() {
	app.Run()
}
