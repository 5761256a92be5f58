package app

import (
	"fmt"
	"strconv"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe は運用APIサーバーモード。
	CommandServe Command = "serve"
	// CommandWorker はスケジューラと価格チェックワーカーを動かすモード。
	CommandWorker Command = "worker"
	// CommandMigrate は未適用のマイグレーションを全て適用する。
	CommandMigrate Command = "migrate"
	// CommandRollback はマイグレーションを指定ステップ数（デフォルト1）だけ戻す。
	CommandRollback Command = "rollback"
	// CommandHealthcheck はヘルスチェックを実行する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch Command(args[0]) {
	case CommandWorker, CommandServe, CommandMigrate, CommandRollback, CommandHealthcheck:
		return Command(args[0])
	default:
		return CommandServe
	}
}

// ParseRollbackSteps はrollbackサブコマンドのステップ数を解析する。
// 省略時は1を返す。
func ParseRollbackSteps(args []string) (int, error) {
	if len(args) < 2 {
		return 1, nil
	}
	steps, err := strconv.Atoi(args[1])
	if err != nil || steps < 1 {
		return 0, fmt.Errorf("invalid rollback steps: %q", args[1])
	}
	return steps, nil
}
