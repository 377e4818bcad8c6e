package model

// RankModel 是打分的最小抽象：输入特征，输出一个 (0,1) 之间的概率。
// 具体实现可以是本地树模型（Ensemble）或远程 RPC（RPCModel）。
//
// features 以特征名为 key；某个特征不存在是合法状态，由树的 missing 分支处理。
type RankModel interface {
	Name() string
	Predict(features map[string]float64) (float64, error)
}
