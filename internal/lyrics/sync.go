package lyrics

// Synchronizer 持有一首歌的歌词和游标，由单个调度协程驱动
type Synchronizer struct {
	track  Track
	cursor Cursor
	lead   float64
	radius int
}

// NewSynchronizer lead 为提前显示的秒数，radius 为可见窗口半径
func NewSynchronizer(track Track, lead float64, radius int) *Synchronizer {
	return &Synchronizer{
		track:  track,
		cursor: NewCursor(),
		lead:   lead,
		radius: radius,
	}
}

// Track 当前歌词
func (s *Synchronizer) Track() Track {
	return s.track
}

// Cursor 当前游标
func (s *Synchronizer) Cursor() Cursor {
	return s.cursor
}

// Update 推进到播放位置，返回可见窗口以及游标是否变化
func (s *Synchronizer) Update(position float64) ([]WindowLine, bool) {
	var changed bool
	s.cursor, changed = s.track.AdvanceTo(s.cursor, position+s.lead)
	return s.track.VisibleWindow(s.cursor, s.radius), changed
}

// Finished 播放位置超过最后一行 grace 秒
func (s *Synchronizer) Finished(position, grace float64) bool {
	if s.track.Empty() {
		return true
	}
	return position > s.track.Duration()+grace
}
