/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-04 09:50:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-29 10:31:18
 * @FilePath: \slayer\distributed\coordinator\splitter_test.go
 * @Description: 速率整除分配测试
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// 测试 SplitRate - 余数全部给第一个节点且份额之和守恒
func TestSplitRateRemainderToFirst(t *testing.T) {
	shares := SplitRate(107, 4)
	assert.Equal(t, []int{29, 26, 26, 26}, shares)

	sum := 0
	for _, s := range shares {
		sum += s
	}
	assert.Equal(t, 107, sum)
}

// 测试 SplitRate - 整除时均分
func TestSplitRateEven(t *testing.T) {
	assert.Equal(t, []int{25, 25, 25, 25}, SplitRate(100, 4))
	assert.Equal(t, []int{107}, SplitRate(107, 1))
}

// 测试 SplitRate - 总速率小于节点数时出现0份额
func TestSplitRateFewerThanNodes(t *testing.T) {
	assert.Equal(t, []int{3, 0, 0, 0, 0}, SplitRate(3, 5))
}

// 测试 SplitRate - 非法输入
func TestSplitRateInvalidInput(t *testing.T) {
	assert.Nil(t, SplitRate(10, 0))
	assert.Nil(t, SplitRate(10, -1))
	assert.Equal(t, []int{0, 0}, SplitRate(-5, 2))
}
