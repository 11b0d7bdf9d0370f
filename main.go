/*
 * @Author: kamalyes 501893067@qq.com
 * @Date: 2026-07-10 09:00:00
 * @LastEditors: kamalyes 501893067@qq.com
 * @LastEditTime: 2026-08-14 17:21:08
 * @FilePath: \slayer\main.go
 * @Description: 自适应压测引擎主入口
 *
 * Copyright (c) 2026 by kamalyes, All Rights Reserved.
 */
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sudoinstallopsecc/slayer/bootstrap"
	"github.com/sudoinstallopsecc/slayer/config"
	"github.com/sudoinstallopsecc/slayer/logger"
	"github.com/sudoinstallopsecc/slayer/pattern"
	"github.com/sudoinstallopsecc/slayer/types"
)

var (
	// 基础参数
	configFile  string
	curlFile    string
	targetURL   string
	method      string
	rps         float64
	duration    int
	concurrency int
	timeout     time.Duration
	patternName string
	dryRun      bool

	// 其他
	body    string
	headers arrayFlags

	// 日志配置
	logLevel string
	logFile  string
	quiet    bool
	verbose  bool

	// 存储配置
	storageMode types.StorageMode // 存储模式 (memory/sqlite/badger)
	storageDir  string            // 持久化存储根目录

	// 内存限制
	maxMemory string // 内存使用阈值

	// 分布式参数
	mode       types.RunMode // 运行模式: standalone/coordinator/worker
	listenAddr string        // 集群监听地址 (Coordinator 模式使用)
	masterURL  string        // 主节点地址 (Worker 模式使用)
	nodeID     string        // 节点ID (可选,不指定则自动生成)
	clusterKey string        // 集群密钥 (Worker 模式必需)
	region     string        // 节点区域标签

	// Coordinator 配置 (Coordinator 模式)
	heartbeatInterval time.Duration // 心跳间隔
	heartbeatTimeout  time.Duration // 心跳超时
	metricsInterval   time.Duration // 指标推送间隔
	startDelay        time.Duration // 同步起跑延迟
	syncInterval      time.Duration // 多节点同步间隔
	maxRPSPerNode     float64       // 单节点速率上限
	minWorkers        int           // 自动下发前最少就绪节点数
	waitTimeout       time.Duration // 等待节点就绪上限
	tokenExpiration   time.Duration // Token 过期时间
	tokenIssuer       string        // Token 签发者
	masterSecret      string        // 会话令牌签发密钥
)

// arrayFlags 数组flag
type arrayFlags []string

func (a *arrayFlags) String() string {
	return fmt.Sprintf("%v", *a)
}

func (a *arrayFlags) Set(value string) error {
	*a = append(*a, value)
	return nil
}

func init() {
	// 设置默认值
	mode = types.RunModeStandalone

	// 基础参数
	flag.StringVar(&configFile, "config", "", "配置文件路径 (yaml/json)")
	flag.StringVar(&curlFile, "curl", "", "curl命令文件路径")
	flag.StringVar(&targetURL, "url", "", "目标URL")
	flag.StringVar(&method, "method", "GET", "请求方法")
	flag.Float64Var(&rps, "rps", 10, "目标速率 (请求/秒)")
	flag.IntVar(&duration, "duration", 60, "压测时长 (秒)")
	flag.IntVar(&concurrency, "c", 10, "工作协程数")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "请求超时时间")
	flag.StringVar(&patternName, "pattern", "", "流量模式 (constant/ramp_up/ramp_down/burst/wave/step/spike/realistic_user 或预设名)")
	flag.BoolVar(&dryRun, "dry-run", false, "只预估速率曲线，不发送请求")

	// 其他
	flag.StringVar(&body, "data", "", "请求体数据")
	flag.Var(&headers, "H", "请求头 (可多次使用)")

	// 日志配置
	flag.StringVar(&logLevel, "log-level", "info", "日志级别 (debug/info/warn/error)")
	flag.StringVar(&logFile, "log-file", "", "日志文件路径")
	flag.BoolVar(&quiet, "quiet", false, "静默模式（仅错误）")
	flag.BoolVar(&verbose, "verbose", false, "详细模式（包含调试信息）")

	// 存储配置
	flag.Var(&storageMode, "storage", "请求明细存储模式 (memory:内存 | sqlite:持久化文件 | badger:KV高吞吐)，缺省沿用配置文件")
	flag.StringVar(&storageDir, "storage-dir", "slayer-report", "持久化存储根目录")

	// 内存限制
	flag.StringVar(&maxMemory, "max-memory", "", "内存使用阈值，超过后自动停止测试 (如: 1GB, 512MB, 2048KB)")

	// 分布式参数
	flag.Var(&mode, "mode", "运行模式 (standalone/coordinator/worker)")
	flag.StringVar(&listenAddr, "addr", ":8765", "集群监听地址 (Coordinator模式)")
	flag.StringVar(&masterURL, "master", "", "主节点地址 (Worker模式必需, 如: ws://localhost:8765/cluster)")
	flag.StringVar(&nodeID, "node-id", "", "节点ID (可选,不指定则自动生成)")
	flag.StringVar(&clusterKey, "cluster-key", "", "集群密钥 (Worker模式必需; Coordinator模式缺省自动生成)")
	flag.StringVar(&region, "region", "", "节点区域标签")

	// Coordinator 配置 (Coordinator 模式)
	flag.DurationVar(&heartbeatInterval, "heartbeat-interval", 10*time.Second, "心跳间隔 (默认10s)")
	flag.DurationVar(&heartbeatTimeout, "heartbeat-timeout", 30*time.Second, "心跳超时 (默认30s)")
	flag.DurationVar(&metricsInterval, "metrics-interval", 5*time.Second, "指标推送间隔 (默认5s)")
	flag.DurationVar(&startDelay, "start-delay", 10*time.Second, "同步起跑延迟 (默认10s)")
	flag.DurationVar(&syncInterval, "sync-interval", 5*time.Second, "多节点同步间隔 (默认5s)")
	flag.Float64Var(&maxRPSPerNode, "max-rps-per-node", 1000, "单节点速率上限，超出仅告警 (默认1000)")
	flag.IntVar(&minWorkers, "min-workers", 1, "自动下发前最少就绪的工作节点数 (默认1)")
	flag.DurationVar(&waitTimeout, "wait-timeout", 2*time.Minute, "等待工作节点就绪上限 (默认2m)")
	flag.DurationVar(&tokenExpiration, "token-expiration", 24*time.Hour, "Token过期时间 (默认24h)")
	flag.StringVar(&tokenIssuer, "token-issuer", "slayer-master", "Token签发者")
	flag.StringVar(&masterSecret, "master-secret", "", "会话令牌签发密钥 (缺省使用内置密钥)")
}

func main() {
	flag.Parse()

	// 初始化日志器
	initLogger()

	// 处理子命令
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "help", "-h", "--help":
			printBanner()
			printSimpleUsage()
			os.Exit(0)
		case "variables", "vars", "-vars":
			printBanner()
			printVariablesHelp()
			os.Exit(0)
		case "examples", "demo", "-demo":
			printBanner()
			printExamplesHelp()
			os.Exit(0)
		case "version", "-v", "--version":
			printVersion()
			os.Exit(0)
		}
	}

	// 如果没有任何参数，显示简化帮助信息
	if len(os.Args) == 1 {
		printBanner()
		printSimpleUsage()
		os.Exit(0)
	}

	// 打印banner
	printBanner()

	// 根据运行模式选择执行路径
	switch mode {
	case types.RunModeCoordinator:
		runCoordinatorMode()
	case types.RunModeWorker:
		runWorkerMode()
	default:
		runStandaloneMode()
	}
}

// buildConfigFromFlags 从命令行参数构建配置
func buildConfigFromFlags() *config.EngineConfig {
	cfg := config.DefaultEngineConfig()

	cfg.TargetURL = targetURL
	cfg.Method = method
	cfg.TargetRPS = rps
	cfg.DurationSeconds = duration
	cfg.Concurrency = concurrency
	cfg.Timeout = types.Duration(timeout)
	cfg.Body = body

	// 解析Headers
	cfg.Headers = make(map[string]string)
	for _, h := range headers {
		parseHeader(h, cfg.Headers)
	}

	// 流量模式：优先匹配标准预设名，其次按模式类型合成（速率与时长沿用顶层参数）
	if patternName != "" {
		if preset, ok := pattern.StandardPatterns()[patternName]; ok {
			cfg.Pattern = preset
		} else {
			cfg.Pattern = &pattern.RequestPattern{Type: pattern.Type(patternName)}
		}
	}

	return cfg
}

// initLogger 初始化日志器
func initLogger() {
	config := logger.DefaultConfig()

	// 优先级：verbose > quiet > logLevel
	switch {
	case verbose:
		config = config.WithLevel(logger.DEBUG).WithShowCaller(true).WithTimeFormat("2006-01-02 15:04:05.000")
	case quiet:
		config = config.WithLevel(logger.ERROR)
	default:
		config = config.WithLevel(logger.ParseLogLevel(logLevel))
	}

	// 配置输出
	if logFile != "" {
		rotateWriter := logger.NewRotateWriter(logFile, 100*1024*1024, 5)
		config = config.WithOutput(rotateWriter).WithColorful(false)
	}

	logger.SetDefault(logger.NewLogger(config))
}

// parseHeader 解析请求头字符串
func parseHeader(header string, headers map[string]string) {
	for i := 0; i < len(header); i++ {
		if header[i] == ':' {
			key := header[:i]
			value := header[i+1:]
			// 去除前后空格
			for len(value) > 0 && value[0] == ' ' {
				value = value[1:]
			}
			headers[key] = value
			return
		}
	}
}

// printBanner 打印启动banner
func printBanner() {
	logger.Default.Info(`
╔══════════════════════════════════════════════════════════╗
║                                                          ║
║     ⚡ SLAYER - Adaptive Load Engine ⚡                  ║
║                                                          ║
║     🚀 自适应流量模式压测引擎                             ║
║     📈 智能限流 / SLO监控 / 熔断退避                      ║
║     🔧 支持单机与分布式集群模式                           ║
║                                                          ║
╚══════════════════════════════════════════════════════════╝
`)
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Println("slayer version 1.0.0")
	fmt.Println("自适应流量模式 HTTP 压测引擎")
}

// printSimpleUsage 打印简化的使用说明
func printSimpleUsage() {
	printHeader("使用方法:")
	flag.Usage()

	fmt.Println("\n常用子命令:")
	fmt.Println("  slayer help          - 显示完整帮助信息")
	fmt.Println("  slayer variables     - 显示所有可用变量函数")
	fmt.Println("  slayer examples      - 显示详细使用示例")
	fmt.Println("  slayer version       - 显示版本信息")

	fmt.Println("\n快速开始:")
	fmt.Println("  # 恒定速率压测")
	fmt.Println("  slayer -url https://example.com -rps 50 -duration 60")
	fmt.Println("")
	fmt.Println("  # 使用配置文件（多阶段模式/SLO/限流）")
	fmt.Println("  slayer -config config.yaml")
	fmt.Println("")
	fmt.Println("  # Coordinator模式（分布式）")
	fmt.Println("  slayer -mode coordinator -config config.yaml")
	fmt.Println("")
	fmt.Println("  # Worker模式")
	fmt.Println("  slayer -mode worker -master ws://localhost:8765/cluster -cluster-key <密钥>")

	fmt.Println("\n💡 提示: 使用 'slayer variables' 查看所有参数化变量")
	fmt.Println("💡 提示: 使用 'slayer examples' 查看详细示例")
}

// printVariablesHelp 打印变量功能帮助
func printVariablesHelp() {
	resolver := config.NewVariableResolver()

	printHeader("变量功能说明:")
	fmt.Println("  支持在 URL、请求体、请求头中使用变量，使用 {{variable}} 或 {{function}} 语法")
	fmt.Println("")

	printHeader("基本用法:")
	printVariableExamples(resolver)

	printHeader("所有可用变量函数:")
	printAvailableFunctions(resolver)
}

// printExamplesHelp 打印示例帮助
func printExamplesHelp() {
	printHeader("基本示例:")
	printExamples()

	printHeader("配置文件示例 (config.yaml):")
	printConfigExample()

	fmt.Println("\n更多示例:")
	fmt.Println("  # 使用变量")
	fmt.Println("  slayer -url 'https://api.example.com/user/{{seq}}' -rps 20 -duration 120")
	fmt.Println("")
	fmt.Println("  # 自定义请求头")
	fmt.Println("  slayer -url https://api.example.com -H 'Authorization: Bearer token' -H 'X-Request-ID: {{uuid}}'")
	fmt.Println("")
	fmt.Println("  # 内存限制")
	fmt.Println("  slayer -config config.yaml -max-memory 1GB")
	fmt.Println("")
	fmt.Println("  # 持久化存储")
	fmt.Println("  slayer -config config.yaml -storage sqlite")
	fmt.Println("")
	fmt.Println("  # 分布式压测 (Coordinator)")
	fmt.Println("  slayer -mode coordinator -addr :8765 -config config.yaml -min-workers 3")
	fmt.Println("")
	fmt.Println("  # 分布式压测 (Worker)")
	fmt.Println("  slayer -mode worker -master ws://coordinator:8765/cluster -cluster-key <密钥> -region us-west")
}

func printHeader(title string) {
	fmt.Println("\n" + title)
}

func printExamples() {
	examples := []string{
		"# 恒定速率压测",
		"slayer -url https://example.com -rps 50 -duration 60",
		"",
		"# POST请求",
		"slayer -url https://api.example.com/users -method POST -data '{\"name\":\"test\"}' -H \"Content-Type: application/json\" -rps 20 -duration 120",
		"",
		"# 线性爬升模式",
		"slayer -url https://example.com -pattern ramp_up -rps 100 -duration 300",
		"",
		"# 标准预设（quick_constant/ramp_up_test/spike_test/realistic_users）",
		"slayer -url https://example.com -pattern spike_test",
		"",
		"# Dry-Run 预览速率曲线，不发请求",
		"slayer -url https://example.com -pattern wave -rps 80 -duration 120 -dry-run",
		"",
		"# 使用配置文件",
		"slayer -config config.yaml",
		"",
		"# 使用curl文件",
		"slayer -curl requests.txt -rps 10 -duration 60",
	}
	for _, example := range examples {
		fmt.Println(example)
	}
}

func printVariableExamples(resolver *config.VariableResolver) {
	seqExample, _ := resolver.Resolve("{{seq}}")
	unixExample, _ := resolver.Resolve("{{unix}}")

	fmt.Println("  slayer -url 'https://api.example.com/user/{{seq}}' -rps 20 -duration 60")
	fmt.Printf("    实际示例: https://api.example.com/user/%s\n", seqExample)
	fmt.Println("  slayer -data '{\"timestamp\": {{unix}}, \"id\": {{seq}}}' ...")
	fmt.Printf("    实际示例: {\"timestamp\": %s, \"id\": %s}\n", unixExample, seqExample)

	printRandomExamples(resolver)
	printEnvironmentExamples(resolver)
}

func printRandomExamples(resolver *config.VariableResolver) {
	randomStr, _ := resolver.Resolve("{{randomString 8}}")
	randomInt, _ := resolver.Resolve("{{randomInt 18 60}}")
	uuidEx, _ := resolver.Resolve("{{uuid}}")

	fmt.Println("  # 随机值")
	fmt.Println("  slayer -data '{\"username\": \"user_{{randomString 8}}\", \"age\": {{randomInt 18 60}}}' ...")
	fmt.Printf("    实际示例: {\"username\": \"user_%s\", \"age\": %s}\n", randomStr, randomInt)
	fmt.Println("  slayer -H 'X-Request-ID: {{uuid}}' ...")
	fmt.Printf("    实际示例: X-Request-ID: %s\n", uuidEx)
}

func printEnvironmentExamples(resolver *config.VariableResolver) {
	hostname, _ := resolver.Resolve("{{hostname}}")
	dateExample, _ := resolver.Resolve("{{date \"2006-01-02 15:04:05\"}}")

	fmt.Println("  # 环境变量和其他")
	fmt.Println("  slayer -H 'X-Hostname: {{hostname}}' ...")
	fmt.Printf("    实际示例: X-Hostname: %s\n", hostname)
	fmt.Println("  slayer -data '{\"date\": \"{{date \"2006-01-02 15:04:05\"}}\"}' ...")
	fmt.Printf("    实际示例: {\"date\": \"%s\"}\n", dateExample)
}

func printAvailableFunctions(resolver *config.VariableResolver) {
	// 生成示例
	seqExample, _ := resolver.Resolve("{{seq}}")
	unixExample, _ := resolver.Resolve("{{unix}}")
	unixNano, _ := resolver.Resolve("{{unixNano}}")
	timestamp, _ := resolver.Resolve("{{timestamp}}")
	dateEx, _ := resolver.Resolve("{{date \"2006-01-02\"}}")

	randomInt, _ := resolver.Resolve("{{randomInt 1 100}}")
	randomFloat, _ := resolver.Resolve("{{randomFloat 0.0 1.0}}")
	randomStr, _ := resolver.Resolve("{{randomString 10}}")
	randomAlpha, _ := resolver.Resolve("{{randomAlpha 8}}")
	randomNum, _ := resolver.Resolve("{{randomNumber 6}}")
	uuidEx, _ := resolver.Resolve("{{uuid}}")
	boolEx, _ := resolver.Resolve("{{randomBool}}")

	emailEx, _ := resolver.Resolve("{{randomEmail}}")
	phoneEx, _ := resolver.Resolve("{{randomPhone}}")
	ipEx, _ := resolver.Resolve("{{randomIP}}")
	uaEx, _ := resolver.Resolve("{{randomUserAgent}}")

	hostname, _ := resolver.Resolve("{{hostname}}")
	localIP, _ := resolver.Resolve("{{localIP}}")

	md5Ex, _ := resolver.Resolve("{{md5 \"test\"}}")
	sha256Ex, _ := resolver.Resolve("{{sha256 \"test\"}}")

	base64Ex, _ := resolver.Resolve("{{base64 \"hello\"}}")
	base64DecEx, _ := resolver.Resolve("{{base64Decode \"aGVsbG8=\"}}")
	urlEncodeEx, _ := resolver.Resolve("{{urlEncode \"a b c\"}}")
	urlDecEx, _ := resolver.Resolve("{{urlDecode \"a+b+c\"}}")
	hexEncEx, _ := resolver.Resolve("{{hexEncode \"hello\"}}")
	hexDecEx, _ := resolver.Resolve("{{hexDecode \"68656c6c6f\"}}")

	upperEx, _ := resolver.Resolve("{{upper \"hello\"}}")
	lowerEx, _ := resolver.Resolve("{{lower \"HELLO\"}}")
	trimEx, _ := resolver.Resolve("{{trim \" hi \"}}")
	replaceEx, _ := resolver.Resolve("{{replace \"hello\" \"l\" \"L\"}}")
	substrEx, _ := resolver.Resolve("{{substr \"hello\" 0 2}}")

	addEx, _ := resolver.Resolve("{{add 1 2}}")
	subMathEx, _ := resolver.Resolve("{{sub 5 2}}")
	mulEx, _ := resolver.Resolve("{{mul 3 4}}")
	divEx, _ := resolver.Resolve("{{div 10 2}}")
	maxEx, _ := resolver.Resolve("{{max 5 10}}")
	minEx, _ := resolver.Resolve("{{min 5 10}}")

	combineEx, _ := resolver.Resolve("{{md5 (date \"2006-01-02\")}}")

	fmt.Println("  环境变量 & 主机:")
	fmt.Println("    {{env \"VAR_NAME\"}}           - 获取环境变量")
	fmt.Printf("    {{hostname}}                  - 主机名 (示例: %s)\n", hostname)
	fmt.Printf("    {{localIP}}                   - 本机IP (示例: %s)\n", localIP)

	fmt.Println("\n  序列 & 时间:")
	fmt.Printf("    {{seq}}                       - 自增序列号 (示例: %s)\n", seqExample)
	fmt.Printf("    {{unix}}                      - Unix时间戳/秒 (示例: %s)\n", unixExample)
	fmt.Printf("    {{unixNano}}                  - Unix纳秒时间戳 (示例: %s)\n", unixNano)
	fmt.Printf("    {{timestamp}}                 - Unix毫秒时间戳 (示例: %s)\n", timestamp)
	fmt.Printf("    {{date \"2006-01-02\"}}         - 格式化日期 (示例: %s)\n", dateEx)
	fmt.Println("    {{dateAdd \"1h\"}}              - 偏移后的时间 (支持 -1h/30m/24h 等)")

	fmt.Println("\n  随机-基础:")
	fmt.Printf("    {{randomInt 1 100}}           - 随机整数 (示例: %s)\n", randomInt)
	fmt.Printf("    {{randomFloat 0.0 1.0}}       - 随机浮点数 (示例: %s)\n", randomFloat)
	fmt.Printf("    {{randomString 10}}           - 随机字符串 (示例: %s)\n", randomStr)
	fmt.Printf("    {{randomAlpha 8}}             - 随机字母 (示例: %s)\n", randomAlpha)
	fmt.Printf("    {{randomNumber 6}}            - 随机数字 (示例: %s)\n", randomNum)
	fmt.Printf("    {{uuid}}                      - UUID (示例: %s)\n", uuidEx)
	fmt.Printf("    {{randomBool}}                - 随机布尔值 (示例: %s)\n", boolEx)

	fmt.Println("\n  随机-格式化:")
	fmt.Printf("    {{randomEmail}}               - 随机邮箱 (示例: %s)\n", emailEx)
	fmt.Printf("    {{randomPhone}}               - 随机手机号 (示例: %s)\n", phoneEx)
	fmt.Printf("    {{randomIP}}                  - 随机IP地址 (示例: %s)\n", ipEx)
	fmt.Printf("    {{randomUserAgent}}           - 随机UA (示例: %.40s...)\n", uaEx)

	fmt.Println("\n  加密/哈希:")
	fmt.Printf("    {{md5 \"text\"}}               - MD5 (示例: %s)\n", md5Ex)
	fmt.Printf("    {{sha256 \"text\"}}            - SHA256 (示例: %.16s...)\n", sha256Ex)

	fmt.Println("\n  编码/解码:")
	fmt.Printf("    {{base64 \"hello\"}}           - Base64编码 (示例: %s)\n", base64Ex)
	fmt.Printf("    {{base64Decode \"aGVsbG8=\"}}  - Base64解码 (示例: %s)\n", base64DecEx)
	fmt.Printf("    {{urlEncode \"a b c\"}}        - URL编码 (示例: %s)\n", urlEncodeEx)
	fmt.Printf("    {{urlDecode \"a+b+c\"}}        - URL解码 (示例: %s)\n", urlDecEx)
	fmt.Printf("    {{hexEncode \"hello\"}}        - 十六进制编码 (示例: %s)\n", hexEncEx)
	fmt.Printf("    {{hexDecode \"68656c6c6f\"}}   - 十六进制解码 (示例: %s)\n", hexDecEx)

	fmt.Println("\n  字符串操作:")
	fmt.Printf("    {{upper \"hello\"}}            - 转大写 (示例: %s)\n", upperEx)
	fmt.Printf("    {{lower \"HELLO\"}}            - 转小写 (示例: %s)\n", lowerEx)
	fmt.Printf("    {{trim \" hi \"}}              - 去除空格 (示例: %s)\n", trimEx)
	fmt.Printf("    {{replace \"hello\" \"l\" \"L\"}} - 字符串替换 (示例: %s)\n", replaceEx)
	fmt.Printf("    {{substr \"hello\" 0 2}}       - 截取子串 (示例: %s)\n", substrEx)
	fmt.Println("    其他: title/split/join/contains/hasPrefix/hasSuffix/repeat/reverse")

	fmt.Println("\n  数学运算:")
	fmt.Printf("    {{add 1 2}}                   - 加法 (示例: %s)\n", addEx)
	fmt.Printf("    {{sub 5 2}}                   - 减法 (示例: %s)\n", subMathEx)
	fmt.Printf("    {{mul 3 4}}                   - 乘法 (示例: %s)\n", mulEx)
	fmt.Printf("    {{div 10 2}}                  - 除法 (示例: %s)\n", divEx)
	fmt.Printf("    {{max 5 10}}                  - 最大值 (示例: %s)\n", maxEx)
	fmt.Printf("    {{min 5 10}}                  - 最小值 (示例: %s)\n", minEx)
	fmt.Println("    其他: mod/abs/ceil/floor/round")

	fmt.Println("\n  转换 & 逻辑:")
	fmt.Println("    {{var \"key\"}}                - 读取配置 variables 池")
	fmt.Println("    {{default .Value \"fallback\"}} - 空值兜底")
	fmt.Println("    {{ternary .Cond \"a\" \"b\"}}    - 三目选择")
	fmt.Println("    其他: toString/toInt/toFloat")

	fmt.Println("\n  组合函数:")
	fmt.Printf("    {{md5 (date \"2006-01-02\")}}   - 嵌套调用 (示例: %s)\n", combineEx)
}

func printConfigExample() {
	fmt.Println("target_url: https://api.example.com/users")
	fmt.Println("method: POST")
	fmt.Println("concurrency: 20")
	fmt.Println("headers:")
	fmt.Println("  Content-Type: application/json")
	fmt.Println("  X-Request-ID: \"{{uuid}}\"")
	fmt.Println("  Authorization: \"Bearer {{env \"API_TOKEN\"}}\"")
	fmt.Println("body: |")
	fmt.Println("  {")
	fmt.Println("    \"id\": {{seq}},")
	fmt.Println("    \"username\": \"user_{{randomString 8}}\",")
	fmt.Println("    \"email\": \"{{randomEmail}}\",")
	fmt.Println("    \"timestamp\": {{timestamp}}")
	fmt.Println("  }")
	fmt.Println("patterns:")
	fmt.Println("  - name: 预热爬升")
	fmt.Println("    type: ramp_up")
	fmt.Println("    duration: 60")
	fmt.Println("    ramp_start_rps: 5")
	fmt.Println("    ramp_end_rps: 50")
	fmt.Println("  - name: 高峰平台")
	fmt.Println("    type: constant")
	fmt.Println("    duration: 300")
	fmt.Println("    target_rps: 50")
	fmt.Println("  - name: 突发冲击")
	fmt.Println("    type: burst")
	fmt.Println("    duration: 120")
	fmt.Println("    target_rps: 40")
	fmt.Println("    burst_interval: 30")
	fmt.Println("    burst_multiplier: 4")
	fmt.Println("throttle:")
	fmt.Println("  max_rps: 200")
	fmt.Println("  min_rps: 5")
	fmt.Println("  error_rate_threshold: 10")
	fmt.Println("  response_time_threshold: 1500")
	fmt.Println("  backoff_strategy: exponential")
	fmt.Println("slos:")
	fmt.Println("  - name: p95延迟")
	fmt.Println("    metric_name: response_time_p95")
	fmt.Println("    threshold: 800")
	fmt.Println("    operator: lt")
	fmt.Println("  - name: 错误率")
	fmt.Println("    metric_name: error_rate")
	fmt.Println("    threshold: 5")
	fmt.Println("    operator: lt")
	fmt.Println("verify:")
	fmt.Println("  - type: STATUS_CODE")
	fmt.Println("    expect: 200")
	fmt.Println("  - type: JSONPATH")
	fmt.Println("    jsonpath: \"$.code\"")
	fmt.Println("    expect: \"0\"")
	fmt.Println("storage:")
	fmt.Println("  mode: sqlite")
	fmt.Println("  path: ./slayer-report/details.db")
}

// runCoordinatorMode 运行 Coordinator 模式
func runCoordinatorMode() {
	// 携带任务配置时，等工作节点就绪后自动下发
	var cfgFunc func() *config.EngineConfig
	if configFile == "" && targetURL != "" {
		cfgFunc = buildConfigFromFlags
	}

	opts := bootstrap.CoordinatorOptions{
		NodeID:            nodeID,
		Addr:              listenAddr,
		ClusterKey:        clusterKey,
		Secret:            masterSecret,
		TokenExpiration:   tokenExpiration,
		TokenIssuer:       tokenIssuer,
		HeartbeatInterval: heartbeatInterval,
		HeartbeatTimeout:  heartbeatTimeout,
		MetricsInterval:   metricsInterval,
		StartDelay:        startDelay,
		SyncInterval:      syncInterval,
		MaxRPSPerNode:     maxRPSPerNode,
		ConfigFile:        configFile,
		ConfigFunc:        cfgFunc,
		MinWorkers:        minWorkers,
		WaitTimeout:       waitTimeout,
		Logger:            logger.Default,
	}

	if err := bootstrap.RunCoordinator(opts); err != nil {
		logger.Default.Fatalf("❌ 运行 Coordinator 失败: %v", err)
	}
}

// runWorkerMode 运行 Worker 模式
func runWorkerMode() {
	opts := bootstrap.WorkerOptions{
		NodeID:            nodeID,
		MasterURL:         masterURL,
		ClusterKey:        clusterKey,
		Region:            region,
		HeartbeatInterval: 0, // 采用主节点下发值
		MetricsInterval:   0, // 采用主节点下发值
		Logger:            logger.Default,
	}
	if err := bootstrap.RunWorker(opts); err != nil {
		logger.Default.Fatalf("❌ 运行 Worker 失败: %v", err)
	}
}

// runStandaloneMode 运行独立模式
func runStandaloneMode() {
	opts := bootstrap.StandaloneOptions{
		ConfigFile:      configFile,
		CurlFile:        curlFile,
		TargetRPS:       rps,
		DurationSeconds: duration,
		Concurrency:     concurrency,
		Timeout:         timeout,
		StorageMode:     storageMode,
		StorageDir:      storageDir,
		MaxMemory:       maxMemory,
		DryRun:          dryRun,
		NodeID:          nodeID,
		Logger:          logger.Default,
		ConfigFunc:      buildConfigFromFlags,
	}
	if err := bootstrap.RunStandalone(opts); err != nil {
		logger.Default.Fatalf("❌ 运行 Standalone 失败: %v", err)
	}
}
