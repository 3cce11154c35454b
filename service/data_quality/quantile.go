/*
 * @module service/data_quality/quantile
 * @description 分位数估计器，小数据集精确排序计算，大数据集使用 P² 流式估计
 * @architecture 策略模式 - 按数据规模选择精确或近似算法
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 数值收集 -> 方法选择 -> 分位数计算
 * @rules 精确路径使用线性插值（与主流数仓分位数语义一致），近似路径的误差界在测试中与精确值对照校验
 * @dependencies sort, math, fmt
 * @refs outlier_capper.go, verifier.go
 */

package data_quality

import (
	"fmt"
	"math"
	"sort"
)

// QuantileMethod 分位数计算方法
type QuantileMethod string

const (
	QuantileAuto  QuantileMethod = "auto"  // 按行数自动选择
	QuantileExact QuantileMethod = "exact" // 精确排序计算
	QuantileP2    QuantileMethod = "p2"    // P² 流式估计
)

// 精确计算的默认行数上限，超过后自动切换到 P² 估计
const defaultExactMaxRows = 100000

// QuantileEstimator 分位数估计器
type QuantileEstimator struct {
	method       QuantileMethod
	exactMaxRows int
}

// NewQuantileEstimator 创建分位数估计器，method 为空时按行数自动选择
func NewQuantileEstimator(method QuantileMethod) *QuantileEstimator {
	if method == "" {
		method = QuantileAuto
	}
	return &QuantileEstimator{
		method:       method,
		exactMaxRows: defaultExactMaxRows,
	}
}

// Quantiles 一次遍历计算多个分位数，qs 取值范围 [0,1]
// 聚合结果与输入顺序无关：精确路径基于全量排序；
// P² 路径对输入顺序存在微小敏感性，其偏差包含在下述误差界内
func (qe *QuantileEstimator) Quantiles(values []float64, qs []float64) ([]float64, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("没有可用于分位数计算的数值")
	}
	for _, q := range qs {
		if q < 0 || q > 1 {
			return nil, fmt.Errorf("分位数 %v 超出 [0,1] 范围", q)
		}
	}

	if qe.Resolve(len(values)) == QuantileExact {
		sorted := make([]float64, len(values))
		copy(sorted, values)
		sort.Float64s(sorted)

		results := make([]float64, len(qs))
		for i, q := range qs {
			results[i] = exactQuantile(sorted, q)
		}
		return results, nil
	}

	estimators := make([]*P2Estimator, len(qs))
	for i, q := range qs {
		estimators[i] = NewP2Estimator(q)
	}
	for _, v := range values {
		for _, est := range estimators {
			est.Observe(v)
		}
	}
	results := make([]float64, len(qs))
	for i, est := range estimators {
		results[i] = est.Value()
	}
	return results, nil
}

// Resolve 返回给定样本量下实际使用的算法
// auto 在样本量不超过精确上限时用精确计算，否则切换 P² 估计
func (qe *QuantileEstimator) Resolve(n int) QuantileMethod {
	if qe.method == QuantileExact || (qe.method == QuantileAuto && n <= qe.exactMaxRows) {
		return QuantileExact
	}
	return QuantileP2
}

// exactQuantile 对已排序切片做线性插值分位数计算
// 位置为 q*(n-1)，落在两个样本之间时按距离线性插值
func exactQuantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}

	idx := q * float64(len(sorted)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// P2Estimator P² 单分位数流式估计器（Jain & Chlamtac, 1985）
// 固定维护 5 个标记点，内存 O(1)，无需保存全量数据
// 精度说明：前 5 个观测值内结果与精确值一致；此后估计值随样本量收敛，
// 对连续分布的典型相对误差在 1% 以内，测试以该误差界对照精确路径校验
type P2Estimator struct {
	q       float64
	count   int64
	heights [5]float64 // 标记高度
	pos     [5]float64 // 标记实际位置
	desired [5]float64 // 标记期望位置
	incr    [5]float64 // 期望位置增量
	initial []float64  // 前 5 个观测值缓存
}

// NewP2Estimator 创建 q 分位数的 P² 估计器
func NewP2Estimator(q float64) *P2Estimator {
	est := &P2Estimator{
		q:       q,
		initial: make([]float64, 0, 5),
	}
	est.incr = [5]float64{0, q / 2, q, (1 + q) / 2, 1}
	return est
}

// Observe 接收一个观测值
func (p *P2Estimator) Observe(value float64) {
	p.count++

	// 前 5 个观测值仅缓存，凑齐后初始化标记
	if len(p.initial) < 5 {
		p.initial = append(p.initial, value)
		if len(p.initial) == 5 {
			sort.Float64s(p.initial)
			for i := 0; i < 5; i++ {
				p.heights[i] = p.initial[i]
				p.pos[i] = float64(i + 1)
			}
			p.desired = [5]float64{1, 1 + 2*p.q, 1 + 4*p.q, 3 + 2*p.q, 5}
		}
		return
	}

	// 找到观测值所属的标记区间并处理极值
	var k int
	switch {
	case value < p.heights[0]:
		p.heights[0] = value
		k = 0
	case value >= p.heights[4]:
		p.heights[4] = value
		k = 3
	default:
		for i := 1; i < 5; i++ {
			if value < p.heights[i] {
				k = i - 1
				break
			}
		}
	}

	// 更新实际位置和期望位置
	for i := k + 1; i < 5; i++ {
		p.pos[i]++
	}
	for i := 0; i < 5; i++ {
		p.desired[i] += p.incr[i]
	}

	// 调整中间三个标记
	for i := 1; i <= 3; i++ {
		d := p.desired[i] - p.pos[i]
		if (d >= 1 && p.pos[i+1]-p.pos[i] > 1) || (d <= -1 && p.pos[i-1]-p.pos[i] < -1) {
			sign := 1.0
			if d < 0 {
				sign = -1.0
			}

			candidate := p.parabolic(i, sign)
			if p.heights[i-1] < candidate && candidate < p.heights[i+1] {
				p.heights[i] = candidate
			} else {
				p.heights[i] = p.linear(i, sign)
			}
			p.pos[i] += sign
		}
	}
}

// Value 返回当前分位数估计值
func (p *P2Estimator) Value() float64 {
	// 不足 5 个观测值时退化为精确计算
	if len(p.initial) < 5 {
		if len(p.initial) == 0 {
			return math.NaN()
		}
		sorted := make([]float64, len(p.initial))
		copy(sorted, p.initial)
		sort.Float64s(sorted)
		return exactQuantile(sorted, p.q)
	}
	return p.heights[2]
}

// Count 已接收的观测值数量
func (p *P2Estimator) Count() int64 {
	return p.count
}

// parabolic P² 抛物线插值公式
func (p *P2Estimator) parabolic(i int, sign float64) float64 {
	return p.heights[i] + sign/(p.pos[i+1]-p.pos[i-1])*
		((p.pos[i]-p.pos[i-1]+sign)*(p.heights[i+1]-p.heights[i])/(p.pos[i+1]-p.pos[i])+
			(p.pos[i+1]-p.pos[i]-sign)*(p.heights[i]-p.heights[i-1])/(p.pos[i]-p.pos[i-1]))
}

// linear 线性插值回退公式
func (p *P2Estimator) linear(i int, sign float64) float64 {
	next := i + int(sign)
	return p.heights[i] + sign*(p.heights[next]-p.heights[i])/(p.pos[next]-p.pos[i])
}
