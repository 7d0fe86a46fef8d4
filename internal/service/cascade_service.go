package service

import (
	"context"
	"log"
	"sync"

	"blockdrive/internal/domain"
)

type CascadeKind string

const (
	CascadeShare   CascadeKind = "share"
	CascadeUnshare CascadeKind = "unshare"
	CascadeDelete  CascadeKind = "delete"
	CascadeMove    CascadeKind = "move"
)

// CascadeTask — сообщение очереди каскадов: корень, вид операции и полезная
// нагрузка. Воркер обрабатывает прямых потомков корня и ставит дочерние папки
// обратно в очередь вместо рекурсии — глубина дерева не растит стек.
type CascadeTask struct {
	RootID  string
	Kind    CascadeKind
	Targets []string
	Mode    domain.ShareMode
}

// CascadePool — пул воркеров для фоновых каскадов. Задачи выполняются
// fire-and-forget: ошибка каскада логируется и не влияет на успех
// породившей его операции; повторов нет.
type CascadePool struct {
	hierarchy *HierarchyService
	tasks     chan CascadeTask
	workers   int

	pending  sync.WaitGroup
	quit     chan struct{}
	stopOnce sync.Once
}

func NewCascadePool(hierarchy *HierarchyService, workers int, queueSize int) *CascadePool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &CascadePool{
		hierarchy: hierarchy,
		tasks:     make(chan CascadeTask, queueSize),
		workers:   workers,
		quit:      make(chan struct{}),
	}
}

func (p *CascadePool) Start() {
	for i := 0; i < p.workers; i++ {
		go p.worker(i)
	}
}

// Enqueue никогда не блокирует вызывающего: при переполненной очереди
// отправка уходит в отдельную горутину, иначе воркеры, сами ставящие
// дочерние задачи, могли бы взаимно заблокироваться
func (p *CascadePool) Enqueue(task CascadeTask) {
	p.pending.Add(1)
	select {
	case p.tasks <- task:
	default:
		log.Printf("[cascade] queue is full, spilling task %s/%s", task.Kind, task.RootID)
		go func() {
			select {
			case p.tasks <- task:
			case <-p.quit:
				p.pending.Done()
			}
		}()
	}
}

// Wait блокируется, пока очередь не опустеет (используется в тестах и при
// останове сервера)
func (p *CascadePool) Wait() {
	p.pending.Wait()
}

func (p *CascadePool) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
	})
}

func (p *CascadePool) worker(id int) {
	for {
		select {
		case task := <-p.tasks:
			p.process(id, task)
		case <-p.quit:
			return
		}
	}
}

func (p *CascadePool) process(workerID int, task CascadeTask) {
	defer p.pending.Done()

	// Отмены на этом уровне нет: начатый каскад доводится до конца
	// или падает независимо по поддеревьям
	ctx := context.Background()
	if err := p.hierarchy.ApplyCascade(ctx, task, p.Enqueue); err != nil {
		log.Printf("[cascade] worker %d: %s cascade from %s failed: %v", workerID, task.Kind, task.RootID, err)
	}
}
