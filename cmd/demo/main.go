// cmd/demo/main.go
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Corphon/EmotionEngineMCP/internal/app"
	"github.com/Corphon/EmotionEngineMCP/internal/config"
	"github.com/Corphon/EmotionEngineMCP/internal/di"
	"github.com/Corphon/EmotionEngineMCP/internal/emotion"
	"github.com/Corphon/EmotionEngineMCP/internal/services"
	"github.com/Corphon/EmotionEngineMCP/internal/utils"
)

func main() {
	fmt.Println("🚀 EmotionEngineMCP Console App")
	fmt.Println("=================================")

	// 初始化配置
	baseConfig, err := config.Load()
	if err != nil {
		log.Printf("❌ 加载基础配置失败: %v", err)
		return
	}

	// 初始化日志系统
	logFile := fmt.Sprintf("logs/console_%s.log", time.Now().Format("2006-01-02"))
	if err := utils.InitLogger(logFile); err != nil {
		log.Printf("⚠️ 无法初始化结构化日志: %v", err)
		log.Println("继续运行...")
	} else {
		logger := utils.GetLogger()
		logger.Info("Console app starting", nil)
	}

	// 初始化环境
	if err := initializeEnvironment(baseConfig); err != nil {
		log.Printf("❌ 初始化环境失败: %v", err)
		return
	}
	defer app.Cleanup()

	for {
		showMenu()
		choice := getUserInput("请选择操作: ")

		switch choice {
		case "1", "create":
			createAgent()
		case "2", "list":
			listAgents()
		case "3", "stimulus":
			sendStimulus()
		case "4", "emotion":
			generateEmotion()
		case "5", "state":
			showAgentState()
		case "6", "action":
			applyAction()
		case "7", "tick":
			advanceTime()
		case "8", "templates":
			listTemplates()
		case "9", "delete":
			deleteAgent()
		case "0", "quit", "exit":
			fmt.Println("👋 再见!")
			return
		default:
			fmt.Println("⚠️ 无效的选择，请重试")
		}
	}
}

// 显示主菜单
func showMenu() {
	fmt.Println()
	fmt.Println("========= 情绪引擎控制台 =========")
	fmt.Println("  1. 创建代理")
	fmt.Println("  2. 查看代理列表")
	fmt.Println("  3. 发送刺激")
	fmt.Println("  4. 直接生成情绪")
	fmt.Println("  5. 查看代理情绪状态")
	fmt.Println("  6. 应用情绪到行为参数")
	fmt.Println("  7. 推进模拟时间")
	fmt.Println("  8. 查看人格模板")
	fmt.Println("  9. 删除代理")
	fmt.Println("  0. 退出")
	fmt.Println("==================================")
}

// 获取用户输入
func getUserInput(prompt string) string {
	fmt.Print(prompt)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()
	return strings.TrimSpace(scanner.Text())
}

// 获取用户输入 (带默认值)
func getUserInputWithDefault(prompt, defaultValue string) string {
	if defaultValue != "" {
		fmt.Printf("%s [默认: %s]: ", prompt, defaultValue)
	} else {
		fmt.Printf("%s: ", prompt)
	}
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()
	input := strings.TrimSpace(scanner.Text())
	if input == "" {
		return defaultValue
	}
	return input
}

// 获取浮点输入
func getFloatInput(prompt string, defaultValue float64) float64 {
	input := getUserInputWithDefault(prompt, strconv.FormatFloat(defaultValue, 'f', -1, 64))
	value, err := strconv.ParseFloat(input, 64)
	if err != nil {
		fmt.Printf("⚠️ 无效的数值，使用默认值 %.2f\n", defaultValue)
		return defaultValue
	}
	return value
}

// 初始化项目环境
func initializeEnvironment(cfg *config.Config) error {
	fmt.Println("🔧 正在初始化项目环境...")

	if err := config.InitConfig(cfg.DataDir); err != nil {
		return fmt.Errorf("初始化配置系统失败: %w", err)
	}

	if err := app.InitServices(); err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}

	fmt.Println("✅ 环境初始化完成")
	return nil
}

// 获取代理服务
func getAgentService() *services.AgentService {
	agentService, ok := di.GetContainer().Get("agent").(*services.AgentService)
	if !ok {
		fmt.Println("❌ 代理服务不可用")
		return nil
	}
	return agentService
}

// 1. 创建代理
func createAgent() {
	agentService := getAgentService()
	if agentService == nil {
		return
	}

	name := getUserInput("代理名称: ")
	if name == "" {
		fmt.Println("⚠️ 名称不能为空")
		return
	}

	template := getUserInputWithDefault("人格模板 (friendly/analytical/creative，留空跳过)", "")

	req := map[string]interface{}{"name": name}
	if template != "" {
		req["template"] = template
	}

	raw, err := json.Marshal(req)
	if err != nil {
		fmt.Printf("❌ 构造请求失败: %v\n", err)
		return
	}

	agent, err := agentService.CreateAgent(raw)
	if err != nil {
		fmt.Printf("❌ 创建代理失败: %v\n", err)
		return
	}

	fmt.Printf("✅ 代理已创建: %s (ID: %s)\n", agent.Name, agent.ID)
	if len(agent.Traits) > 0 {
		fmt.Println("   人格特质:")
		for trait, value := range agent.Traits {
			fmt.Printf("     - %s: %.2f\n", trait, value)
		}
	}
}

// 2. 查看代理列表
func listAgents() {
	agentService := getAgentService()
	if agentService == nil {
		return
	}

	agents := agentService.ListAgents()
	if len(agents) == 0 {
		fmt.Println("📭 尚未创建任何代理")
		return
	}

	fmt.Printf("📋 共 %d 个代理:\n", len(agents))
	for _, agent := range agents {
		fmt.Printf("  - %s (ID: %s, 模板: %s)\n", agent.Name, agent.ID, agent.Template)
	}
}

// 3. 发送刺激
func sendStimulus() {
	agentService := getAgentService()
	if agentService == nil {
		return
	}

	agentID := getUserInput("代理ID: ")
	stimulusType := getUserInputWithDefault("刺激类型 (threat/cooperation/conflict/surprise)", "surprise")
	source := getUserInputWithDefault("刺激来源", "console")
	intensity := getFloatInput("刺激强度 (0-1)", 0.5)

	stimulus := emotion.Stimulus{
		Type:      emotion.StimulusType(stimulusType),
		Source:    source,
		Intensity: intensity,
	}

	ctx := emotion.Context{}
	if stimulusType == "threat" || stimulusType == "cooperation" {
		rel := getFloatInput("与来源的关系值 (-1 到 1)", 0)
		ctx.Relationships = map[string]float64{source: rel}
	}
	if stimulusType == "surprise" {
		stimulus.Valence = getFloatInput("刺激效价 (-1 到 1)", 0)
	}

	states, err := agentService.ProcessStimulus(agentID, stimulus, ctx)
	if err != nil {
		fmt.Printf("❌ 处理刺激失败: %v\n", err)
		return
	}

	if len(states) == 0 {
		fmt.Println("💤 该刺激没有引发情绪反应")
		return
	}

	fmt.Printf("✅ 引发 %d 个情绪:\n", len(states))
	for _, state := range states {
		fmt.Printf("  - %s (强度: %.2f, 原因: %s)\n", state.Kind, state.Intensity, state.Cause)
	}
}

// 4. 直接生成情绪
func generateEmotion() {
	agentService := getAgentService()
	if agentService == nil {
		return
	}

	agentID := getUserInput("代理ID: ")
	kind := getUserInputWithDefault("情绪类型 (joy/sadness/anger/fear/...)", "joy")
	intensity := getFloatInput("情绪强度 (0-1)", 0.6)
	cause := getUserInputWithDefault("触发原因", "Console input")

	state, err := agentService.GenerateEmotion(agentID, kind, intensity, cause)
	if err != nil {
		fmt.Printf("❌ 生成情绪失败: %v\n", err)
		return
	}

	fmt.Printf("✅ 情绪已生成: %s (强度: %.2f)\n", state.Kind, state.Intensity)
}

// 5. 查看代理情绪状态
func showAgentState() {
	agentService := getAgentService()
	if agentService == nil {
		return
	}

	agentID := getUserInput("代理ID: ")

	expression, err := agentService.Expression(agentID)
	if err != nil {
		fmt.Printf("❌ 获取情绪表达失败: %v\n", err)
		return
	}
	fmt.Printf("😊 表情: %s\n", expression.Description)

	states, err := agentService.ActiveEmotions(agentID)
	if err != nil {
		fmt.Printf("❌ 获取活跃情绪失败: %v\n", err)
		return
	}
	if len(states) == 0 {
		fmt.Println("💤 当前没有活跃情绪")
	} else {
		fmt.Printf("🔥 活跃情绪 (%d):\n", len(states))
		for _, state := range states {
			fmt.Printf("  - %s: 强度 %.2f (衰减率 %.2f/s)\n", state.Kind, state.Intensity, state.DecayRate)
		}
	}

	mood, err := agentService.Mood(agentID)
	if err != nil {
		fmt.Printf("❌ 获取心境失败: %v\n", err)
		return
	}
	fmt.Printf("🌤 心境基线: 效价 %.2f, 唤醒 %.2f, 支配 %.2f\n",
		mood[emotion.Valence], mood[emotion.Arousal], mood[emotion.Dominance])

	modifiers, err := agentService.ResponseModifiers(agentID)
	if err != nil {
		fmt.Printf("❌ 获取响应调制参数失败: %v\n", err)
		return
	}
	fmt.Printf("🎛 响应调制: 热情 %.2f, 积极 %.2f, 细致 %.2f\n",
		modifiers.Enthusiasm, modifiers.Positivity, modifiers.Detail)
}

// 6. 应用情绪到行为参数
func applyAction() {
	agentService := getAgentService()
	if agentService == nil {
		return
	}

	agentID := getUserInput("代理ID: ")
	actionName := getUserInputWithDefault("行为名称 (communicate/analyze/decide)", "communicate")

	params, err := agentService.ApplyEffects(agentID, actionName, map[string]float64{})
	if err != nil {
		fmt.Printf("❌ 应用情绪效果失败: %v\n", err)
		return
	}

	fmt.Printf("✅ 行为 %s 的调制参数:\n", actionName)
	for param, value := range params {
		fmt.Printf("  - %s: %.3f\n", param, value)
	}
}

// 7. 推进模拟时间
func advanceTime() {
	agentService := getAgentService()
	if agentService == nil {
		return
	}

	seconds := getFloatInput("推进秒数", 1.0)
	if seconds <= 0 {
		fmt.Println("⚠️ 秒数必须为正")
		return
	}

	// 按秒步进，观察衰减过程
	steps := int(seconds)
	if steps < 1 {
		steps = 1
	}
	for i := 0; i < steps; i++ {
		agentService.TickAll(time.Now().Add(time.Duration(i+1) * time.Second))
	}

	fmt.Printf("⏩ 已推进 %d 秒，所有代理的情绪已衰减\n", steps)
}

// 8. 查看人格模板
func listTemplates() {
	personalityService, ok := di.GetContainer().Get("personality").(*services.PersonalityService)
	if !ok {
		fmt.Println("❌ 人格模板服务不可用")
		return
	}

	templates := personalityService.Templates()
	fmt.Printf("📋 共 %d 个人格模板:\n", len(templates))
	for _, tmpl := range templates {
		fmt.Printf("  - %s:\n", tmpl.Name)
		for trait, value := range tmpl.Traits {
			fmt.Printf("      %s: %.2f\n", trait, value)
		}
	}
}

// 9. 删除代理
func deleteAgent() {
	agentService := getAgentService()
	if agentService == nil {
		return
	}

	agentID := getUserInput("代理ID: ")
	confirm := getUserInputWithDefault("确认删除? (y/n)", "n")
	if confirm != "y" && confirm != "yes" {
		fmt.Println("已取消")
		return
	}

	if err := agentService.DeleteAgent(agentID); err != nil {
		fmt.Printf("❌ 删除代理失败: %v\n", err)
		return
	}

	fmt.Printf("✅ 代理 %s 已删除\n", agentID)
}
