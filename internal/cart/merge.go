package cart

import "github.com/mmeshcher/hamper-storefront/internal/model"

type mergeKey struct {
	id   int64
	kind model.Kind
}

func mergeKeyOf(item model.CatalogItem) mergeKey {
	return mergeKey{id: item.ItemID(), kind: item.Kind()}
}

// mergeLines объединяет локальные и удалённые позиции по (id, kind).
// Локальные позиции сохраняются как есть, включая количество; удалённые
// добавляются в конец, если их нет локально и они не помечены удалёнными.
func mergeLines(local, remote []model.LineItem, removed map[model.Tombstone]struct{}) []model.LineItem {
	merged := make([]model.LineItem, 0, len(local)+len(remote))
	seen := make(map[mergeKey]struct{}, len(local)+len(remote))

	for _, l := range local {
		merged = append(merged, l)
		seen[mergeKeyOf(l.Item)] = struct{}{}
	}

	for _, r := range remote {
		if r.Item == nil || !r.Item.Kind().Valid() || r.Quantity < 1 {
			continue
		}
		if _, ok := removed[tombstoneOf(r.Item)]; ok {
			continue
		}
		k := mergeKeyOf(r.Item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, r)
	}

	return merged
}
