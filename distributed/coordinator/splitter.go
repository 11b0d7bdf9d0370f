/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-04 09:20:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-29 10:05:44
 * @FilePath: \slayer\distributed\coordinator\splitter.go
 * @Description: 目标速率在工作节点间的整除分配
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package coordinator

// SplitRate 将总速率按整除拆分到 nodes 个节点：
// 每个节点分得 totalRate/nodes，余数全部追加给第一个节点，
// 保证各份额之和恰好等于 totalRate（例如 107/4 → [29,26,26,26]）。
// nodes <= 0 时返回 nil
func SplitRate(totalRate, nodes int) []int {
	if nodes <= 0 {
		return nil
	}
	if totalRate < 0 {
		totalRate = 0
	}
	base := totalRate / nodes
	shares := make([]int, nodes)
	for i := range shares {
		shares[i] = base
	}
	shares[0] += totalRate % nodes
	return shares
}
