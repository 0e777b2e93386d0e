// Command collegeconnect はキャンパスのお知らせと質問受付のポータルを起動する。
//
//	collegeconnect [serve|worker|migrate|promote <email> [role]|healthcheck]
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/collegeconnect/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
