/*
 * @module service/data_quality/script_rule
 * @description 脚本谓词执行器，通过 yaegi 解释执行 Go 表达式作为异常规则谓词
 * @architecture 解释器模式 - 脚本编译结果按内容哈希缓存
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 脚本哈希 -> 缓存查询 -> 编译 -> 执行
 * @rules 脚本必须返回 (bool, error)，仅注入标准库符号，不开放宿主状态
 * @dependencies github.com/traefik/yaegi, sync, crypto/sha1
 * @refs anomaly_flagger.go
 */

package data_quality

import (
	"crypto/sha1"
	"fmt"
	"sync"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// ScriptPredicateExecutor 脚本谓词执行器，带编译缓存
type ScriptPredicateExecutor struct {
	mu    sync.RWMutex
	cache map[string]*compiledPredicate
}

// compiledPredicate 编译后的谓词函数
type compiledPredicate struct {
	fn       func(map[string]interface{}) (bool, error)
	compiled time.Time
	hash     string
}

// NewScriptPredicateExecutor 创建脚本谓词执行器
func NewScriptPredicateExecutor() *ScriptPredicateExecutor {
	return &ScriptPredicateExecutor{
		cache: make(map[string]*compiledPredicate),
	}
}

// Match 对单条记录执行脚本谓词
func (s *ScriptPredicateExecutor) Match(script string, record Record) (bool, error) {
	hash := fmt.Sprintf("%x", sha1.Sum([]byte(script)))

	s.mu.RLock()
	compiled, ok := s.cache[hash]
	s.mu.RUnlock()

	if !ok {
		var err error
		compiled, err = s.compile(script, hash)
		if err != nil {
			return false, fmt.Errorf("谓词脚本编译失败: %w", err)
		}

		s.mu.Lock()
		s.cache[hash] = compiled
		s.mu.Unlock()
	}

	return compiled.fn(record)
}

// compile 编译脚本为谓词函数
// 脚本内容作为 Match 函数体注入，record 变量是当前记录
func (s *ScriptPredicateExecutor) compile(script, hash string) (*compiledPredicate, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("加载标准库失败: %w", err)
	}

	wrapped := fmt.Sprintf(`
package main

import (
	"fmt"
	"strings"
	"strconv"
	"math"
	"time"
)

// 入口函数，record 为当前评估的记录
func Match(record map[string]interface{}) (bool, error) {
%s
}
`, script)

	_, err := i.Eval(wrapped)
	if err != nil {
		return nil, fmt.Errorf("脚本编译失败: %w", err)
	}

	v, err := i.Eval("Match")
	if err != nil {
		return nil, fmt.Errorf("脚本缺少 Match 函数: %w", err)
	}

	matchFunc, ok := v.Interface().(func(map[string]interface{}) (bool, error))
	if !ok {
		return nil, fmt.Errorf("Match 函数签名必须是 func(map[string]interface{}) (bool, error)")
	}

	return &compiledPredicate{
		fn:       matchFunc,
		compiled: time.Now(),
		hash:     hash,
	}, nil
}

// CacheSize 当前缓存的脚本数量
func (s *ScriptPredicateExecutor) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}
