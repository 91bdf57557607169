package values

import (
	"container/list"
	"errors"
)

// List is an ordered sequence of byte strings, backed by a doubly linked
// list so push/pop at either end stay O(1) the way the original's
// std::list<std::string> did. size mirrors that list's cached length
// (store invariant 4).
type List struct {
	data *list.List
	size int
}

func NewList() *List { return &List{data: list.New()} }

func (l *List) Kind() Kind { return KindList }

func (l *List) Len() int { return l.size }

func (l *List) Empty() bool { return l.size == 0 }

// LPush prepends elements in argument order (so the last element supplied
// ends up at the head-most position after all are pushed).
func (l *List) LPush(elements ...string) {
	for _, e := range elements {
		l.data.PushFront(e)
		l.size++
	}
}

// RPush appends elements in argument order.
func (l *List) RPush(elements ...string) {
	for _, e := range elements {
		l.data.PushBack(e)
		l.size++
	}
}

// LPop removes and returns the head element, or ok=false if empty.
func (l *List) LPop() (string, bool) {
	front := l.data.Front()
	if front == nil {
		return "", false
	}
	l.data.Remove(front)
	l.size--
	return front.Value.(string), true
}

// RPop removes and returns the tail element, or ok=false if empty.
func (l *List) RPop() (string, bool) {
	back := l.data.Back()
	if back == nil {
		return "", false
	}
	l.data.Remove(back)
	l.size--
	return back.Value.(string), true
}

func (l *List) elementAt(index int) *list.Element {
	if index < 0 || index >= l.size {
		return nil
	}
	// Walk from whichever end is closer.
	if index <= l.size/2 {
		e := l.data.Front()
		for i := 0; i < index; i++ {
			e = e.Next()
		}
		return e
	}
	e := l.data.Back()
	for i := l.size - 1; i > index; i-- {
		e = e.Prev()
	}
	return e
}

// Index returns the element at a negative-from-end index, or ok=false if
// out of range.
func (l *List) Index(index int) (string, bool) {
	index = normalizeIndex(index, l.size)
	e := l.elementAt(index)
	if e == nil {
		return "", false
	}
	return e.Value.(string), true
}

var errIndexOutOfRange = errors.New("ERR index out of range")

// Set replaces the element at a negative-from-end index.
func (l *List) Set(index int, newval string) error {
	index = normalizeIndex(index, l.size)
	e := l.elementAt(index)
	if e == nil {
		return errIndexOutOfRange
	}
	e.Value = newval
	return nil
}

// Range returns the inclusive, negative-from-end, clipped [start, end] slice.
func (l *List) Range(start, end int) []string {
	n := l.size
	start = normalizeIndex(start, n)
	end = normalizeIndex(end, n)
	if start < 0 {
		start = 0
	}
	if end >= n {
		end = n - 1
	}
	if n == 0 || start > end || start >= n {
		return []string{}
	}
	out := make([]string, 0, end-start+1)
	e := l.elementAt(start)
	for i := start; i <= end && e != nil; i++ {
		out = append(out, e.Value.(string))
		e = e.Next()
	}
	return out
}

// Rem removes matching elements: count == 0 removes every match; count > 0
// removes the first count matches scanning head-to-tail; count < 0 removes
// the last |count| matches scanning tail-to-head. Returns the number removed.
func (l *List) Rem(count int, target string) int {
	removed := 0
	if count >= 0 {
		for e := l.data.Front(); e != nil; {
			next := e.Next()
			if count != 0 && removed >= count {
				break
			}
			if e.Value.(string) == target {
				l.data.Remove(e)
				l.size--
				removed++
			}
			e = next
		}
		return removed
	}
	limit := -count
	for e := l.data.Back(); e != nil && removed < limit; {
		prev := e.Prev()
		if e.Value.(string) == target {
			l.data.Remove(e)
			l.size--
			removed++
		}
		e = prev
	}
	return removed
}

// Trim retains the inclusive, normalized [start, end] range and drops
// everything else. Returns true if the list became empty.
func (l *List) Trim(start, end int) bool {
	n := l.size
	start = normalizeIndex(start, n)
	end = normalizeIndex(end, n)
	if start < 0 {
		start = 0
	}
	if end >= n {
		end = n - 1
	}
	if n == 0 || start > end || start >= n {
		l.data = list.New()
		l.size = 0
		return true
	}
	kept := list.New()
	e := l.elementAt(start)
	for i := start; i <= end && e != nil; i++ {
		kept.PushBack(e.Value)
		e = e.Next()
	}
	l.data = kept
	l.size = kept.Len()
	return l.size == 0
}

// Insert places element immediately before or after the first occurrence of
// pivot, returning the new length, or -1 if pivot is not found.
func (l *List) Insert(before bool, pivot, element string) int {
	for e := l.data.Front(); e != nil; e = e.Next() {
		if e.Value.(string) == pivot {
			if before {
				l.data.InsertBefore(element, e)
			} else {
				l.data.InsertAfter(element, e)
			}
			l.size++
			return l.size
		}
	}
	return -1
}

// All returns every element head to tail, used by the snapshot codec.
func (l *List) All() []string {
	out := make([]string, 0, l.size)
	for e := l.data.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(string))
	}
	return out
}
