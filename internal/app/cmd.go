package app

import (
	"fmt"

	"github.com/hitoshi/collegeconnect/internal/model"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はWebサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモード（お知らせ取り込み、セッション掃除）で起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandPromote はユーザーのロールを変更することを示す。
	CommandPromote Command = "promote"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "promote":
		return CommandPromote
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

// PromoteArgs はpromoteサブコマンドの引数。
type PromoteArgs struct {
	Email string
	Role  model.Role
}

// ParsePromoteArgs は "promote <email> [role]" の引数部分（サブコマンド名を除く）を解析する。
// roleを省略した場合はadmin。
func ParsePromoteArgs(args []string) (PromoteArgs, error) {
	if len(args) == 0 || args[0] == "" {
		return PromoteArgs{}, fmt.Errorf("usage: collegeconnect promote <email> [student|admin]")
	}
	if len(args) > 2 {
		return PromoteArgs{}, fmt.Errorf("too many arguments for promote: %v", args[2:])
	}

	out := PromoteArgs{Email: args[0], Role: model.RoleAdmin}
	if len(args) == 2 {
		out.Role = model.Role(args[1])
		if !out.Role.IsValid() {
			return PromoteArgs{}, fmt.Errorf("invalid role %q (allowed: %s, %s)", args[1], model.RoleStudent, model.RoleAdmin)
		}
	}
	return out, nil
}
