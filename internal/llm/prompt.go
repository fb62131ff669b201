package llm

import "fmt"

const ClassifySystemPrompt = `あなたはユーザーの発話が、画面上のテキストに対する感想・フィードバックを含んでいるかを判定するAIアシスタントです。
雑音や関係ない話（例: 咳払い・意味のない言葉・話題の逸脱）などは "No" としてください。
ユーザーは、明確な改善を示すこともあれば、何らかの不満点などを示すこともあると思いますが、いずれにせよ、画面上のテキストに対するフィードバックを含んでいるかどうかを判定してください。
「Yes」または「No」のどちらか一語で返答してください。`

const PlanSystemPrompt = `あなたはメルカリの商品説明文を改善するAIアシスタントです。
ユーザーが提供する元の商品説明文と、その改善に関するフィードバックに基づいて、
どのような修正を行うべきかを自然言語で説明してください。

明確な指示がある場合は、それに従い、そうで無い場合についても、議論の触発材になればいいので、修正の方向性を考えてみてください。
修正そのものはこの時点では行わず、あくまで修正方針だけを出力してください。`

const ApplySystemPrompt = `あなたはメルカリの商品説明文を改善するAIアシスタントです。
ユーザーが提供する元の商品説明文と、修正方針に基づいて、
商品説明文を修正してください。

修正の際には以下のガイドラインに従ってください：
1. 修正方針を忠実に反映する
2. 商品の魅力が伝わる表現を心がける
3. 簡潔かつ明確な文章を作成する
4. メルカリの商品説明として適切な丁寧さを保つ

修正した文章のみを返してください。説明や理由は含めないでください。`

const noTextPlaceholder = "（テキストはまだありません）"

func BuildClassifyPrompt(utterance, currentText string) string {
	if currentText == "" {
		currentText = noTextPlaceholder
	}
	return fmt.Sprintf(`【画面上のテキスト】
%s

【ユーザーの発話】
%s

上記の発話は、画面上のテキストに対するフィードバックを含んでいますか？`, currentText, utterance)
}

func BuildPlanPrompt(text, feedback string) string {
	return fmt.Sprintf(`【元の商品説明文】
%s

【ユーザーのフィードバック】
%s

上記のフィードバックに基づいて、どのような修正を行うべきか説明してください。
出力形式：「〇〇な修正を加えてみるのはどうでしょうか？」`, text, feedback)
}

func BuildApplyPrompt(text, plan, feedback string) string {
	return fmt.Sprintf(`【元の商品説明文】
%s

【修正方針】
%s

【ユーザーのフィードバック】
%s

上記の修正方針に基づいて商品説明文を修正してください。
修正した文章のみを出力してください。`, text, plan, feedback)
}
