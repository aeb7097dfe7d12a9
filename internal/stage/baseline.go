package stage

import (
	"context"
	"fmt"

	"PaperPromoter/internal/domain"
)

var fewshotExamples = map[string][]string{
	Twitter.Name: {
		"# Transformers, but 10x cheaper to serve\n\n1/ Serving LLMs is dominated by memory traffic, not FLOPs. This paper asks: what if the KV cache were 4x smaller?\n\n2/ The trick: quantise keys per channel and values per token, with a tiny outlier buffer.\n\n3/ Result: 4.1x smaller cache, <0.5 perplexity loss on Llama-2 70B, 2.6x higher throughput.\n\n4/ Takeaway: memory is the bottleneck, and it is compressible.\n\n#LLM #MachineLearning",
		"# Robots that learn from YouTube\n\n1/ Can a robot learn to cook by watching videos? New work trains a policy on 10k hours of unlabeled human video.\n\n2/ A video world model predicts hand motion; a small adapter maps it to the robot arm.\n\n3/ With 50 real demos it beats methods trained on 10x more robot data.\n\n#Robotics #AI",
	},
	Xiaohongshu.Name: {
		"# 大模型推理省钱新思路💡\n\n最近读到一篇超实用的论文！\n\n✨ 问题：大模型推理时显存被 KV cache 吃满\n✨ 方法：按通道量化 key，按 token 量化 value\n✨ 效果：缓存缩小 4 倍，吞吐提升 2.6 倍\n\n做部署的朋友一定要看👀\n\n#大模型 #AI #论文分享",
		"# 看视频就能学做饭的机器人🤖\n\n这篇论文让机器人从 1 万小时的人类视频里学习！\n\n📌 视频世界模型预测手部动作\n📌 小型适配器迁移到机械臂\n📌 只需 50 条真机示范\n\n未来家务机器人可期～\n\n#机器人 #人工智能 #科研日常",
	},
}

// Original is the single-stage baseline: paper text straight to a post.
type Original struct{}

func (Original) Name() string { return domain.StageOriginal }

func (s Original) Run(ctx context.Context, state domain.GenerationState, env Env) (domain.GenerationState, error) {
	return runBaseline(ctx, s.Name(), state, env, nil, "")
}

// Fewshot is Original with built-in example posts for the platform.
type Fewshot struct{}

func (Fewshot) Name() string { return domain.StageFewshot }

func (s Fewshot) Run(ctx context.Context, state domain.GenerationState, env Env) (domain.GenerationState, error) {
	return runBaseline(ctx, s.Name(), state, env, fewshotExamples[env.platform().Name], "")
}

// WithFigure adds a reading of the paper's first figure to the prompt.
// Papers without figures fall back to text only.
type WithFigure struct{}

func (WithFigure) Name() string { return domain.StageWithFigure }

func (s WithFigure) Run(ctx context.Context, state domain.GenerationState, env Env) (domain.GenerationState, error) {
	logger := env.logger().With("project", state.Project.ID)

	figures, err := loadFigures(ctx, state, env)
	if err != nil {
		return state, domain.NewStageError(s.Name(), err)
	}
	fig, img, ok := firstPreparedFigure(ctx, state, env, figures)
	if !ok {
		logger.Warn("no usable figure found, generating from text only", "candidates", len(figures))
		state.Figures, state.VisualNotes = nil, nil
		return runBaseline(ctx, s.Name(), state, env, nil, "")
	}

	state.Figures = []domain.Figure{fig}
	analysis, err := env.Gateway.AnalyzeImage(ctx, img, visionPrompt(state, fig), domain.CallOptions{MaxTokens: 400})
	if err != nil {
		return state, domain.NewStageError(s.Name(), fmt.Errorf("analyze %s: %w", fig.ID, err))
	}
	state.VisualNotes = []domain.VisualNote{{FigureID: fig.ID, Kind: fig.Kind, Page: fig.Page, Analysis: analysis}}

	state, err = runBaseline(ctx, s.Name(), state, env, nil, analysis)
	if err == nil {
		state.Post.FigureID = fig.ID
	}
	return state, err
}

// firstPreparedFigure returns the first candidate that survives image
// preparation. Figures that fail are skipped with a warning.
func firstPreparedFigure(ctx context.Context, state domain.GenerationState, env Env, figures []domain.Figure) (domain.Figure, domain.Image, bool) {
	for _, fig := range figures {
		img, err := prepareFigure(ctx, state, env, fig)
		if err != nil {
			env.logger().Warn("skipping figure", "project", state.Project.ID, "figure", fig.ID, "error", err)
			continue
		}
		return fig, img, true
	}
	return domain.Figure{}, domain.Image{}, false
}

func runBaseline(ctx context.Context, name string, state domain.GenerationState, env Env, examples []string, figureNote string) (domain.GenerationState, error) {
	state, err := withDocument(ctx, state, env)
	if err != nil {
		return state, domain.NewStageError(name, err)
	}

	p := env.platform()
	raw, err := env.Gateway.GenerateText(ctx, baselinePrompt(state, p, examples, figureNote), domain.CallOptions{Temperature: 0.7, MaxTokens: 1500})
	if err != nil {
		return state, domain.NewStageError(name, fmt.Errorf("generate post: %w", err))
	}
	post, err := ParsePost(raw, p)
	if err != nil {
		return state, domain.NewStageError(name, err)
	}
	state.Post = &post
	return state, nil
}
