// Package status はLinearのワークフロー状態名を公開ステータスに正規化する。
package status

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/roadmap/internal/model"
)

// defaultTable は既知のワークフロー状態名と公開ステータスの対応表。
var defaultTable = map[string]model.PublicStatus{
	"Backlog":      model.StatusTodo,
	"Todo":         model.StatusTodo,
	"In Progress":  model.StatusInProgress,
	"In Dev":       model.StatusInProgress,
	"Dev Done":     model.StatusInProgress,
	"In Wessense":  model.StatusInProgress,
	"In Manual QA": model.StatusInProgress,
	"Done":         model.StatusDone,
	"Completed":    model.StatusDone,
	"Canceled":     model.StatusCancelled,
}

// ordered は表示順の公開ステータス一覧。
var ordered = []model.PublicStatus{
	model.StatusTodo,
	model.StatusInProgress,
	model.StatusDone,
	model.StatusCancelled,
}

var labels = map[model.PublicStatus]string{
	model.StatusTodo:       "Todo",
	model.StatusInProgress: "In Progress",
	model.StatusDone:       "Done",
	model.StatusCancelled:  "Cancelled",
}

// Normalizer は状態名の正規化を行う。
// ゼロ値はデフォルトの対応表とslog.Default()で動作する。
type Normalizer struct {
	// Overrides はデフォルトの対応表に追加・上書きするエントリ。
	Overrides map[string]model.PublicStatus
	// Logger は未知の状態名を警告するロガー。nilの場合はslog.Default()。
	Logger *slog.Logger
	// OnUnknown は未知の状態名を検出したときに呼ばれる（メトリクス用）。
	OnUnknown func(name string)
}

// Map は状態名を公開ステータスに変換する。
// 未知の状態名は警告ログを出力してtodoを返す。失敗することはない。
func (n *Normalizer) Map(name string) model.PublicStatus {
	if s, ok := n.lookup(name); ok {
		return s
	}

	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("unknown workflow state, defaulting to todo",
		slog.String("state", name),
	)
	if n.OnUnknown != nil {
		n.OnUnknown(name)
	}
	return model.StatusTodo
}

// IsKnown は状態名が対応表に存在するかを返す。
func (n *Normalizer) IsKnown(name string) bool {
	_, ok := n.lookup(name)
	return ok
}

func (n *Normalizer) lookup(name string) (model.PublicStatus, bool) {
	if s, ok := n.Overrides[name]; ok {
		return s, true
	}
	s, ok := defaultTable[name]
	return s, ok
}

var defaultNormalizer = &Normalizer{}

// Map はデフォルトの対応表で状態名を公開ステータスに変換する。
func Map(name string) model.PublicStatus {
	return defaultNormalizer.Map(name)
}

// All は公開ステータスを表示順（todo, in-progress, done, cancelled）で返す。
// 戻り値は呼び出し元で変更してよい。
func All() []model.PublicStatus {
	out := make([]model.PublicStatus, len(ordered))
	copy(out, ordered)
	return out
}

// Label は公開ステータスの表示名を返す。未知の値はそのまま文字列化する。
func Label(s model.PublicStatus) string {
	if l, ok := labels[s]; ok {
		return l
	}
	return string(s)
}

// Parse は公開ステータスの文字列表現を検証して返す。
func Parse(raw string) (model.PublicStatus, bool) {
	s := model.PublicStatus(strings.TrimSpace(raw))
	_, ok := labels[s]
	return s, ok
}

// ParseOverrides は "In Review=in-progress,QA=in-progress" 形式の文字列を対応表に変換する。
// 空文字列の場合はnilを返す。
func ParseOverrides(raw string) (map[string]model.PublicStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	out := make(map[string]model.PublicStatus)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, found := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			return nil, fmt.Errorf("invalid status override %q: expected <state>=<status>", pair)
		}
		s, ok := Parse(value)
		if !ok {
			return nil, fmt.Errorf("invalid status override %q: unknown status %q", pair, strings.TrimSpace(value))
		}
		out[name] = s
	}
	return out, nil
}
