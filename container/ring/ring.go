/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package ring holds a fixed-capacity slice of slots, all allocated by one
// malloc, that can be scanned and mutated in place without ever resizing.
package ring

// Ring is a GC friendly, fixed-capacity slot table. Slots are allocated by
// one malloc and cannot be resized; a slot's value can be read or mutated
// in place via Get.
// type V must NOT contain pointer for performance concern.
type Ring[V any] struct {
	items []Item[V]
}

// Item is a single slot in the Ring.
type Item[V any] struct {
	value V
}

// NewFromSlice builds a Ring pre-populated with vv. The Ring owns a copy
// of each value, not vv itself.
func NewFromSlice[V any](vv []V) *Ring[V] {
	r := &Ring[V]{items: make([]Item[V], len(vv))}
	for i := range vv {
		r.items[i].value = vv[i]
	}
	return r
}

// Get returns the ith slot.
func (r *Ring[V]) Get(i int) (*Item[V], bool) {
	if i < 0 || i >= len(r.items) {
		return nil, false
	}
	return &r.items[i], true
}

// Do calls f on every slot's value, in slot order.
func (r *Ring[V]) Do(f func(v *V)) {
	for i := range r.items {
		f(&r.items[i].value)
	}
}

// Len returns the number of slots.
func (r *Ring[V]) Len() int {
	return len(r.items)
}

// Value returns the slot's current value.
func (it *Item[V]) Value() V {
	return it.value
}

// Pointer returns a pointer to the slot's value.
// Do not retain the pointer past the Ring's lifetime.
func (it *Item[V]) Pointer() *V {
	return &it.value
}
