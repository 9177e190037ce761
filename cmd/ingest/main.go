package main

import "github.com/alejandroruanova/feed-ingestion-service/internal/cli"

func main() {
	cli.Execute()
}
