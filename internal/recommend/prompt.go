package recommend

import (
	"fmt"
	"strings"

	"mangashelf/pkg/models"
)

// RatedFavorite is a favorite as the model sees it.
type RatedFavorite struct {
	Name   string
	Rating int
}

// neutralStars is the tier unrated favorites are shown in.
const neutralStars = 3

// RateFavorites converts stored favorites, skipping any whose series name is
// in excluded.
func RateFavorites(favs []models.Favorite, excluded []string) []RatedFavorite {
	skip := make(map[string]bool, len(excluded))
	for _, e := range excluded {
		skip[strings.TrimSpace(e)] = true
	}
	out := make([]RatedFavorite, 0, len(favs))
	for _, f := range favs {
		if skip[f.SeriesName] {
			continue
		}
		stars := f.Stars()
		if stars < 1 || stars > 5 {
			stars = neutralStars
		}
		out = append(out, RatedFavorite{Name: f.DisplayName(), Rating: stars})
	}
	return out
}

var tiers = []struct {
	stars   int
	heading string
}{
	{5, "【非常に気に入っている作品★★★★★】"},
	{4, "【気に入っている作品★★★★☆】"},
	{3, "【普通の作品★★★☆☆】"},
	{2, "【あまり好きではない作品★★☆☆☆】"},
	{1, "【嫌いな作品★☆☆☆☆】"},
}

// tierText groups favorites under their star heading, best first. Empty
// tiers are left out.
func tierText(favs []RatedFavorite) string {
	var b strings.Builder
	for _, t := range tiers {
		var names []string
		for _, f := range favs {
			if f.Rating == t.stars {
				names = append(names, f.Name)
			}
		}
		if len(names) == 0 {
			continue
		}
		b.WriteString("\n")
		b.WriteString(t.heading)
		b.WriteString("\n")
		b.WriteString(strings.Join(names, "、"))
	}
	return b.String()
}

const ratingGuide = `【重要な分析ポイント】
- ★★★★★（星5）の作品は「非常に気に入っている」ため、最重要な好み指標として扱う
- ★★★★☆（星4）の作品は「気に入っている」ため、重要な好み指標として扱う
- ★★★☆☆（星3）の作品は「普通」のため、参考程度に扱う
- ★★☆☆☆（星2）の作品は「あまり好きではない」ため、類似作品は避ける
- ★☆☆☆☆（星1）の作品は「嫌い」なため、類似作品は強く避ける`

const jsonContract = `必ず以下の厳密なJSON配列形式のみで回答してください（余計なテキストやマークダウンは一切含めない）：
[
  {
    "title": "漫画のタイトル",
    "author": "著者",
    "genre": "ジャンル",
    "reason": "おすすめ理由（特に星評価の高い作品との関連性を説明）"
  }
]

重要：JSON以外のテキスト（ヘッダー、説明文など）は含めず、有効なJSON配列のみを出力してください。`

// PromptOptions shapes the candidate prompt.
type PromptOptions struct {
	// TargetYear > 0 asks for series started in or after that year.
	TargetYear int
	Count      int
	Genres     []string
}

// CandidatePrompt asks for opts.Count proposals based on the tiered favorites.
func CandidatePrompt(favs []RatedFavorite, opts PromptOptions) string {
	target := "漫画"
	if opts.TargetYear > 0 {
		target = fmt.Sprintf("%d年以降に連載開始した最近の漫画", opts.TargetYear)
	}
	count := opts.Count
	if count <= 0 {
		count = DefaultFinalCount
	}

	var b strings.Builder
	fmt.Fprintf(&b, "あなたは漫画に詳しいAIアシスタントです。以下のユーザーのお気に入り漫画リスト（星評価付き）から好みを分析し、%sを%dつおすすめしてください。\n\n", target, count)
	fmt.Fprintf(&b, "お気に入り漫画（星評価付き）：%s\n\n", tierText(favs))
	if genres := cleanList(opts.Genres); len(genres) > 0 {
		fmt.Fprintf(&b, "希望ジャンル：%s\n（可能な限りこれらのジャンルから選んでください）\n\n", strings.Join(genres, "、"))
	}
	b.WriteString(ratingGuide)
	b.WriteString(`

推薦手順：
1. 星5と星4の作品から主要な好みのパターン（ジャンル、作風、テーマ等）を特定
2. 星2と星1の作品の特徴は避けるべき要素として認識
3. これらの分析に基づいて最適な作品を選定
4. お気に入りリストに含まれる作品は推薦しない

著者について：
- 似たタイトルの二次作品やパロディ作品と混同せず、原作の著者を記載してください。
- 共著の場合は全員を記載してください。
- 不確実な場合は「不明」と記載してください。

`)
	b.WriteString(jsonContract)
	b.WriteString("\n")
	return b.String()
}

// SelectionPrompt asks the model to pick finalCount entries from candidates.
func SelectionPrompt(favs []RatedFavorite, candidates []models.Candidate, finalCount int) string {
	lines := make([]string, 0, len(candidates))
	for _, c := range candidates {
		lines = append(lines, fmt.Sprintf("- %s（%s）: %s", c.Title, c.Author, c.Reason))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "あなたは漫画に詳しいAIアシスタントです。以下のユーザーのお気に入り漫画（星評価付き）を分析し、候補作品の中から最もユーザーに適した%dつを選んでください。\n\n", finalCount)
	fmt.Fprintf(&b, "お気に入り漫画（星評価付き）：%s\n\n", tierText(favs))
	fmt.Fprintf(&b, "候補作品：\n%s\n\n", strings.Join(lines, "\n"))
	b.WriteString(`【重要な選択基準】
1. ★★★★★（星5）と★★★★☆（星4）の作品との関連性を最優先
2. ★★☆☆☆（星2）と★☆☆☆☆（星1）の作品の特徴は避ける
3. ジャンルの多様性とバランス
4. おすすめ理由の妥当性と説得力

タイトルは候補作品の表記をそのまま使ってください。

`)
	b.WriteString(jsonContract)
	b.WriteString("\n")
	return b.String()
}

// RepairPrompt asks the model to re-emit broken output as a valid array.
func RepairPrompt(broken string) string {
	return "次のテキストは壊れたJSON配列です。内容を変えずに、有効なJSON配列だけを出力してください。" +
		"各要素は \"title\", \"author\", \"genre\", \"reason\" の文字列キーを持つオブジェクトです。" +
		"JSON以外のテキストは含めないでください。\n\n" + broken + "\n"
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
