// Package sctid 解析与构造 SNOMED CT 标识符（SCTID）
//
// SCTID 从右到左依次为：1 位 Verhoeff 校验位、2 位分区标识、
// 长格式（分区首位为 1）时的 7 位命名空间，其余为条目 ID。
package sctid

import (
	"fmt"
	"strconv"
)

// 标识符长度约束
const (
	MinLength       = 6
	MaxLength       = 18
	NamespaceDigits = 7
	MaxNamespace    = 9999999
)

// Partition 分区类别，编码了标识符的用途和格式
type Partition string

const (
	PartitionConcept               Partition = "00"
	PartitionDescription           Partition = "01"
	PartitionRelationship          Partition = "02"
	PartitionExtensionConcept      Partition = "10"
	PartitionExtensionDescription  Partition = "11"
	PartitionExtensionRelationship Partition = "12"
)

var partitions = map[Partition]string{
	PartitionConcept:               "concept",
	PartitionDescription:           "description",
	PartitionRelationship:          "relationship",
	PartitionExtensionConcept:      "concept",
	PartitionExtensionDescription:  "description",
	PartitionExtensionRelationship: "relationship",
}

// ParsePartition 校验并返回分区类别
func ParsePartition(s string) (Partition, error) {
	p := Partition(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown partition %q", s)
	}
	return p, nil
}

// Valid 是否为已知分区
func (p Partition) Valid() bool {
	_, ok := partitions[p]
	return ok
}

// Long 是否为携带命名空间的长格式分区
func (p Partition) Long() bool {
	return p.Valid() && p[0] == '1'
}

// Kind 返回分区对应的实体类型，如 "concept"
func (p Partition) Kind() string {
	return partitions[p]
}

// Components SCTID 的组成部分
type Components struct {
	ItemID     int64
	Namespace  int
	Partition  Partition
	CheckDigit int
}

// Parse 解析十进制字符串形式的 SCTID
func Parse(s string) (Components, error) {
	if len(s) < MinLength || len(s) > MaxLength {
		return Components{}, fmt.Errorf("sctid %q must have %d-%d digits", s, MinLength, MaxLength)
	}
	if s[0] == '0' {
		return Components{}, fmt.Errorf("sctid %q has a leading zero", s)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return Components{}, fmt.Errorf("sctid %q contains non-digit characters", s)
		}
	}
	if !ValidCheckDigit(s) {
		return Components{}, fmt.Errorf("sctid %q fails the Verhoeff check", s)
	}

	n := len(s)
	partition, err := ParsePartition(s[n-3 : n-1])
	if err != nil {
		return Components{}, fmt.Errorf("sctid %q: %w", s, err)
	}

	c := Components{
		Partition:  partition,
		CheckDigit: int(s[n-1] - '0'),
	}

	// 截去分区与校验位后剩余的部分
	rest := s[:n-3]
	if partition.Long() {
		if len(rest) <= NamespaceDigits {
			return Components{}, fmt.Errorf("sctid %q too short for a namespaced partition", s)
		}
		ns, _ := strconv.Atoi(rest[len(rest)-NamespaceDigits:])
		c.Namespace = ns
		rest = rest[:len(rest)-NamespaceDigits]
	}

	c.ItemID, err = strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return Components{}, fmt.Errorf("sctid %q: %w", s, err)
	}
	return c, nil
}

// ParseInt 解析整数形式的 SCTID
func ParseInt(id int64) (Components, error) {
	return Parse(strconv.FormatInt(id, 10))
}

// Build 根据条目 ID、命名空间和分区构造 SCTID
// 短格式分区要求 namespace 为 0
func Build(itemID int64, namespace int, partition Partition) (int64, error) {
	if !partition.Valid() {
		return 0, fmt.Errorf("unknown partition %q", partition)
	}
	if itemID < 0 {
		return 0, fmt.Errorf("item id must not be negative")
	}

	digits := strconv.FormatInt(itemID, 10)
	if partition.Long() {
		if namespace <= 0 || namespace > MaxNamespace {
			return 0, fmt.Errorf("namespace must be in 1-%d for partition %s", MaxNamespace, partition)
		}
		digits += fmt.Sprintf("%0*d", NamespaceDigits, namespace)
	} else if namespace != 0 {
		return 0, fmt.Errorf("partition %s does not carry a namespace", partition)
	}
	digits += string(partition)
	digits += strconv.Itoa(CheckDigit(digits))

	if len(digits) < MinLength || len(digits) > MaxLength {
		return 0, fmt.Errorf("sctid %s must have %d-%d digits", digits, MinLength, MaxLength)
	}
	return strconv.ParseInt(digits, 10, 64)
}

// Verify 解析 SCTID 并确认其分区与命名空间与预期一致
func Verify(s string, namespace int, partition Partition) (int64, error) {
	c, err := Parse(s)
	if err != nil {
		return 0, err
	}
	if c.Partition != partition {
		return 0, fmt.Errorf("sctid %s has partition %s, expected %s", s, c.Partition, partition)
	}
	if partition.Long() && c.Namespace != namespace {
		return 0, fmt.Errorf("sctid %s has namespace %d, expected %d", s, c.Namespace, namespace)
	}
	return strconv.ParseInt(s, 10, 64)
}
