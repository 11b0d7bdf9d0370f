/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-03 10:15:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-06 09:41:50
 * @FilePath: \slayer\distributed\cluster\crypto.go
 * @Description: 集群消息对称加密（AES-GCM 认证加密）
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package cluster

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// KeySize 默认密钥长度（AES-256）
const KeySize = 32

var (
	// ErrInvalidKeySize 密钥长度非法
	ErrInvalidKeySize = errors.New("集群密钥长度必须为 16/24/32 字节")
	// ErrCiphertextTooShort 密文长度不足以容纳 nonce
	ErrCiphertextTooShort = errors.New("密文长度不足")
)

// MessageCrypto 集群消息加解密器
// 使用 AES-GCM 认证加密：每条消息独立随机 nonce（前置于密文），
// 整体经 base64 编码后在 WebSocket 文本帧中传输。
// 认证失败的消息无法区分是篡改还是密钥不一致，调用方统一丢弃并记录
type MessageCrypto struct {
	aead cipher.AEAD
}

// NewMessageCrypto 创建加解密器，key 长度须为 16/24/32 字节
func NewMessageCrypto(key []byte) (*MessageCrypto, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("创建AES加密器失败: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("创建GCM模式失败: %w", err)
	}
	return &MessageCrypto{aead: aead}, nil
}

// NewRandomKey 生成一把随机密钥（AES-256）
func NewRandomKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("生成随机密钥失败: %w", err)
	}
	return key, nil
}

// EncodeKey 将密钥编码为可写入配置分发的字符串
func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// DecodeKey 解析配置中的密钥字符串
func DecodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("解析集群密钥失败: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	}
	return nil, ErrInvalidKeySize
}

// Seal 加密一条消息：JSON序列化 → GCM加密（nonce前置）→ base64
func (mc *MessageCrypto) Seal(msg *ClusterMessage) ([]byte, error) {
	plain, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("序列化集群消息失败: %w", err)
	}
	nonce := make([]byte, mc.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("生成随机nonce失败: %w", err)
	}
	sealed := mc.aead.Seal(nonce, nonce, plain, nil)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sealed)))
	base64.StdEncoding.Encode(out, sealed)
	return out, nil
}

// Open 解密一条消息：base64解码 → GCM认证解密 → JSON反序列化
// 任何一步失败均返回错误，不暴露失败的具体阶段
func (mc *MessageCrypto) Open(data []byte) (*ClusterMessage, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(raw, data)
	if err != nil {
		return nil, fmt.Errorf("解码消息失败: %w", err)
	}
	raw = raw[:n]
	ns := mc.aead.NonceSize()
	if len(raw) < ns {
		return nil, ErrCiphertextTooShort
	}
	plain, err := mc.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("消息认证解密失败: %w", err)
	}
	var msg ClusterMessage
	if err := json.Unmarshal(plain, &msg); err != nil {
		return nil, fmt.Errorf("解析集群消息失败: %w", err)
	}
	return &msg, nil
}
