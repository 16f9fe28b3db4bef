// internal/emotion/json.go
package emotion

import "encoding/json"

// MarshalJSON 将情绪类型序列化为标识名
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON 从标识名反序列化情绪类型
func (k *Kind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseKind(name)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalJSON 将情绪向量序列化为 维度名 -> 值 的映射
func (v Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Map())
}

// UnmarshalJSON 从 维度名 -> 值 的映射反序列化情绪向量
func (v *Vector) UnmarshalJSON(data []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for _, d := range Dimensions {
		if val, ok := m[d.String()]; ok {
			v[d] = val
		}
	}
	return nil
}
