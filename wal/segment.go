package wal

import (
	"fmt"
	"os"
	"path/filepath"
)

func newSegment(id uint64, directory string) *segment {
	name := fmt.Sprintf("wal_%016x.log", id)
	return &segment{id: id, filePath: filepath.Join(directory, name)}
}

// open opens the segment file in append-only mode, creating it if absent.
func (s *segment) open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return nil
	}

	file, err := os.OpenFile(s.filePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}

	s.file = file
	s.size = stat.Size()
	return nil
}

// append writes raw bytes to the segment. No fsync — durability comes from
// a subsequent sync call.
func (s *segment) append(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return fmt.Errorf("wal: segment %d not open", s.id)
	}
	n, err := s.file.Write(data)
	if err != nil {
		return err
	}
	s.size += int64(n)
	return nil
}

func (s *segment) sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("wal: segment %d not open", s.id)
	}
	return s.file.Sync()
}

func (s *segment) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
