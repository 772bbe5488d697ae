package walletdb

import "context"

// AnchorOffset is how far behind the chain tip a spend's anchor must
// sit for confirmation safety.
const AnchorOffset = 10

// GetTargetAndAnchorHeights returns the height a new transaction should
// target (tip + 1) and the anchor height a spend proof should reference
// (tip + 1 - AnchorOffset, floored at the lowest stored height). ok is
// false when no blocks are stored yet.
func (d *DB) GetTargetAndAnchorHeights(ctx context.Context) (target, anchor uint32, ok bool, err error) {
	minHeight, maxHeight, has, err := d.BlockHeightExtrema(ctx)
	if err != nil || !has {
		return 0, 0, false, err
	}

	target = maxHeight + 1
	anchor = minHeight
	if target > AnchorOffset && target-AnchorOffset > minHeight {
		anchor = target - AnchorOffset
	}
	return target, anchor, true, nil
}
