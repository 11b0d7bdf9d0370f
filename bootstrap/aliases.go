/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-08 11:05:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-08 11:05:00
 * @FilePath: \slayer\bootstrap\aliases.go
 * @Description: 类型别名统一管理
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package bootstrap

import "github.com/sudoinstallopsecc/slayer/types"

// 运行模式别名
type (
	RunMode = types.RunMode
)

// 运行模式常量
const (
	RunModeStandalone  = types.RunModeStandalone
	RunModeCoordinator = types.RunModeCoordinator
	RunModeWorker      = types.RunModeWorker
)

// 存储模式别名
type (
	StorageMode = types.StorageMode
)

// 存储模式常量
const (
	StorageModeMemory = types.StorageModeMemory
	StorageModeSQLite = types.StorageModeSQLite
	StorageModeBadger = types.StorageModeBadger
)
