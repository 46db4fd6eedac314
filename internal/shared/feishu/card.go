package feishu

import (
	"context"
	"encoding/json"
	"fmt"
)

// SendCard 向群聊发送消息卡片
func (c *FeishuClient) SendCard(ctx context.Context, chatID string, card InteractiveCard) error {
	return c.sendCard(ctx, "chat_id", chatID, card)
}

// SendUserCard 向个人发送消息卡片
// userID: 用户ID（open_id）
func (c *FeishuClient) SendUserCard(ctx context.Context, userID string, card InteractiveCard) error {
	return c.sendCard(ctx, "open_id", userID, card)
}

// sendCard 发送消息卡片的内部实现
func (c *FeishuClient) sendCard(ctx context.Context, idType, id string, card InteractiveCard) error {
	// 将卡片序列化为JSON字符串
	cardBytes, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("序列化卡片内容失败: %w", err)
	}

	reqBody := map[string]interface{}{
		"receive_id_type": idType,
		"receive_id":      id,
		"msg_type":        "interactive",
		"content":         string(cardBytes),
	}

	path := fmt.Sprintf("/open-apis/im/v1/messages?receive_id_type=%s", idType)

	var resp SendMessageResponse
	if err := c.doRequest(ctx, "POST", path, reqBody, &resp); err != nil {
		return fmt.Errorf("发送消息卡片失败: %w", err)
	}

	return nil
}

// DocumentTypeLabel 文书类型的展示名（卡片用）
func DocumentTypeLabel(documentType string) string {
	switch documentType {
	case "basic":
		return "基本文书"
	case "leave":
		return "休假申请"
	case "car_fuel":
		return "车辆油费"
	case "expense_draft":
		return "支出决议"
	case "overseas_trip":
		return "海外出差"
	case "welfare_expense":
		return "福利支出"
	default:
		return documentType
	}
}

// NewApprovalPendingCard 创建待审通知卡片
// title: 审批单标题
// drafterName: 起草人名称
// typeLabel: 文书类型展示名
// content: 审批说明
func NewApprovalPendingCard(title, drafterName, typeLabel, content string) InteractiveCard {
	elements := []CardElement{
		{
			Tag: "div",
			Fields: []CardField{
				{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**审批标题**\n%s", title)}},
				{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**文书类型**\n%s", typeLabel)}},
				{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**起草人**\n%s", drafterName)}},
			},
		},
	}

	if content != "" {
		elements = append(elements,
			CardElement{
				Tag:  "div",
				Text: &CardText{Tag: "lark_md", Content: fmt.Sprintf("**审批说明**\n%s", content)},
			},
		)
	}

	elements = append(elements,
		CardElement{Tag: "hr"},
		CardElement{
			Tag: "note",
			Elements: []CardElement{
				{Tag: "plain_text", Content: "请登录 OA 系统处理此审批"},
			},
		},
	)

	return InteractiveCard{
		Config: &CardConfig{WideScreenMode: true},
		Header: &CardHeader{
			Title:    CardText{Tag: "plain_text", Content: "📋 新审批待处理"},
			Template: "orange",
		},
		Elements: elements,
	}
}

// NewApprovalResultCard 创建审批结果通知卡片
// title: 审批单标题
// result: 审批结果（通过/驳回）
// comment: 最后一步的审批意见
func NewApprovalResultCard(title, result, comment string) InteractiveCard {
	// 根据结果选择颜色模板
	template := "green"
	emoji := "✅"
	if result != "通过" {
		template = "red"
		emoji = "❌"
	}

	elements := []CardElement{
		{
			Tag: "div",
			Fields: []CardField{
				{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**审批标题**\n%s", title)}},
				{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**审批结果**\n%s %s", emoji, result)}},
			},
		},
	}

	if comment != "" {
		elements = append(elements,
			CardElement{Tag: "hr"},
			CardElement{
				Tag:  "div",
				Text: &CardText{Tag: "lark_md", Content: fmt.Sprintf("**审批意见**\n%s", comment)},
			},
		)
	}

	return InteractiveCard{
		Config: &CardConfig{WideScreenMode: true},
		Header: &CardHeader{
			Title:    CardText{Tag: "plain_text", Content: "📝 审批结果通知"},
			Template: template,
		},
		Elements: elements,
	}
}
