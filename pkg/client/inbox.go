package client

// DefaultPageSize matches the dashboard's messages-per-page setting.
const DefaultPageSize = 5

// Inbox is a client-local view over a fetched message list. It slices the
// list into fixed-size pages and supports optimistic removal after a
// confirmed deletion without refetching. The server stays the source of
// truth; Replace is the recovery path when local state diverges.
type Inbox struct {
	messages []Message
	pageSize int
}

// NewInbox builds an inbox view over the supplied messages. A non-positive
// page size falls back to DefaultPageSize.
func NewInbox(messages []Message, pageSize int) *Inbox {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Inbox{
		messages: append([]Message(nil), messages...),
		pageSize: pageSize,
	}
}

// Len reports the number of messages currently held.
func (in *Inbox) Len() int {
	return len(in.messages)
}

// PageSize reports the configured page size.
func (in *Inbox) PageSize() int {
	return in.pageSize
}

// TotalPages reports how many pages the current list spans.
func (in *Inbox) TotalPages() int {
	if len(in.messages) == 0 {
		return 0
	}
	return (len(in.messages) + in.pageSize - 1) / in.pageSize
}

// Page returns the slice of messages for the 1-based page number. Pages
// beyond the end yield an empty slice rather than an error; callers render
// an empty state.
func (in *Inbox) Page(page int) []Message {
	if page < 1 {
		return nil
	}

	start := in.pageSize * (page - 1)
	if start >= len(in.messages) {
		return nil
	}

	end := start + in.pageSize
	if end > len(in.messages) {
		end = len(in.messages)
	}
	return append([]Message(nil), in.messages[start:end]...)
}

// Remove drops the message with the given id from the local list, reporting
// whether anything was removed. Page computations over the shrunk list need
// no further adjustment.
func (in *Inbox) Remove(id string) bool {
	for i, msg := range in.messages {
		if msg.ID == id {
			in.messages = append(in.messages[:i], in.messages[i+1:]...)
			return true
		}
	}
	return false
}

// Replace swaps the held list for a freshly fetched one.
func (in *Inbox) Replace(messages []Message) {
	in.messages = append([]Message(nil), messages...)
}
