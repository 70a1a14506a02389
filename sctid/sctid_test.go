package sctid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidCheckDigit 使用已发布的国际版概念标识符验证校验位算法
func TestValidCheckDigit(t *testing.T) {
	for _, id := range []string{"22298006", "73211009", "385804009", "900000000000207008", "900000000000003001", "100005"} {
		assert.True(t, ValidCheckDigit(id), id)
	}
	for _, id := range []string{"22298007", "73211000", "100004", "12a45"} {
		assert.False(t, ValidCheckDigit(id), id)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Components
	}{
		{"short concept", "22298006", Components{ItemID: 22298, Partition: PartitionConcept, CheckDigit: 6}},
		{"core metadata", "900000000000207008", Components{ItemID: 900000000000207, Partition: PartitionConcept, CheckDigit: 8}},
		{"namespaced concept", "11000168109", Components{ItemID: 1, Namespace: 1000168, Partition: PartitionExtensionConcept, CheckDigit: 9}},
		{"namespaced description", "51000168114", Components{ItemID: 5, Namespace: 1000168, Partition: PartitionExtensionDescription, CheckDigit: 4}},
		{"short description", "101013", Components{ItemID: 101, Partition: PartitionDescription, CheckDigit: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{
		"",
		"12345",               // 过短
		"1234567890123456789", // 过长
		"022298006",           // 前导零
		"2229800a",            // 非数字
		"22298007",            // 校验位错误
	} {
		_, err := Parse(in)
		assert.Error(t, err, in)
	}
}

func TestBuildRoundTrip(t *testing.T) {
	id, err := Build(1, 1000168, PartitionExtensionConcept)
	require.NoError(t, err)
	assert.Equal(t, int64(11000168109), id)

	id, err = Build(1000001, 1000168, PartitionExtensionConcept)
	require.NoError(t, err)
	assert.Equal(t, int64(10000011000168102), id)

	id, err = Build(101, 0, PartitionDescription)
	require.NoError(t, err)
	assert.Equal(t, int64(101013), id)

	for item := int64(1); item < 200; item++ {
		id, err := Build(item, 1000168, PartitionExtensionRelationship)
		require.NoError(t, err)
		c, err := ParseInt(id)
		require.NoError(t, err)
		assert.Equal(t, item, c.ItemID)
		assert.Equal(t, 1000168, c.Namespace)
		assert.Equal(t, PartitionExtensionRelationship, c.Partition)
	}
}

func TestBuildRejects(t *testing.T) {
	_, err := Build(1, 0, Partition("99"))
	assert.Error(t, err)
	_, err = Build(1, 0, PartitionExtensionConcept)
	assert.Error(t, err, "namespaced partition needs a namespace")
	_, err = Build(1, 1000168, PartitionConcept)
	assert.Error(t, err, "short partition carries no namespace")
	_, err = Build(4, 0, PartitionConcept)
	assert.Error(t, err, "too short")
	_, err = Build(-1, 0, PartitionConcept)
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	id, err := Verify("11000168109", 1000168, PartitionExtensionConcept)
	require.NoError(t, err)
	assert.Equal(t, int64(11000168109), id)

	_, err = Verify("11000168109", 1000036, PartitionExtensionConcept)
	assert.ErrorContains(t, err, "namespace")

	_, err = Verify("11000168109", 1000168, PartitionExtensionDescription)
	assert.ErrorContains(t, err, "partition")

	// 短格式分区不校验命名空间
	_, err = Verify("22298006", 0, PartitionConcept)
	assert.NoError(t, err)
}

func TestPartition(t *testing.T) {
	p, err := ParsePartition("11")
	require.NoError(t, err)
	assert.True(t, p.Long())
	assert.Equal(t, "description", p.Kind())

	assert.False(t, PartitionRelationship.Long())
	_, err = ParsePartition("13")
	assert.Error(t, err)
}
