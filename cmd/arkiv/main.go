// Command arkiv materializes JSONL archives into SQLite and back.
package main

import "github.com/queelius/arkiv/internal/cli"

func main() {
	cli.Execute()
}
