// Package allocation assigns mobile units to demand locations.
//
// GreedyAllocator walks the targets in the order given by the caller. For
// each target it ranks the units still in the pool by distance to the
// target, using a stable sort so that equally distant units keep their pool
// order, and claims the first Required of them. Claimed units leave the pool
// for good. The procedure is a heuristic: an earlier target always has first
// pick, even when a later target would have been a better match globally.
//
// Validate is a separate boundary check. The allocator itself never fails on
// well-formed input and only returns an error when its context is cancelled.
package allocation
