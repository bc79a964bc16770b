// Command gatehouse は認証ポータルとJSONマイクロサービスを提供するサーバー。
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/gatehouse/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
