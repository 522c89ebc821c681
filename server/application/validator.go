package application

import "stronghold/server/domain"

// 入力値の上限。検証失敗したコマンドは不正入力として応答なしで破棄される。
const (
	MaxIDLen          = 36 // 不透明トークン(UUID)の文字数
	MaxTypeLen        = 50
	MaxAllianceName   = 20
	MaxDescriptionLen = 200
	MaxTroopQuantity  = 50
	MaxDonationCount  = 10
	MaxQueueIndex     = 50
)

// BoundedString は長さが[1, maxLen]に収まる文字列かを返します。
func BoundedString(v string, maxLen int) bool {
	return len(v) >= 1 && len(v) <= maxLen
}

// IntInRange は[lo, hi]に収まる整数かを返します。
func IntInRange(v, lo, hi int) bool {
	return v >= lo && v <= hi
}

// ValidVector3 は全成分が有限値の座標かを返します。
func ValidVector3(v domain.Vector3) bool {
	return v.Finite()
}

// KnownEnum は値が既知の集合に含まれるかを返します。
func KnownEnum(v string, set map[string]struct{}) bool {
	_, ok := set[v]
	return ok
}
