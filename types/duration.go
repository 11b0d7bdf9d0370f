/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-06-25 14:08:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-07-13 17:30:12
 * @FilePath: \slayer\types\duration.go
 * @Description: 配置友好的时长类型
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration 可从配置文件解析的时长
// 接受 "30s"/"1m30s" 风格字符串，纯数字按秒解释
type Duration time.Duration

// D 返回底层 time.Duration
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

// String 实现 fmt.Stringer
func (d Duration) String() string {
	return time.Duration(d).String()
}

// Seconds 返回秒数
func (d Duration) Seconds() float64 {
	return time.Duration(d).Seconds()
}

// ParseDuration 解析时长字符串，纯数字按秒解释
func ParseDuration(raw string) (Duration, error) {
	if raw == "" {
		return 0, fmt.Errorf("时长不能为空")
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Duration(time.Duration(f * float64(time.Second))), nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("无法解析时长: %q", raw)
	}
	return Duration(parsed), nil
}

// UnmarshalYAML 实现 yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("时长字段必须是标量 (行%d)", value.Line)
	}
	parsed, err := ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalYAML 实现 yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalJSON 实现 json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		*d = Duration(time.Duration(val * float64(time.Second)))
		return nil
	case string:
		parsed, err := ParseDuration(val)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("时长字段类型无效: %T", v)
	}
}

// MarshalJSON 实现 json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
