package main

import "guidena-backend/internal/app"

func main() {
	app.Run()
}
