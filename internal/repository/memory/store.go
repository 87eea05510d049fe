// Package memory хранилище в памяти для тестов и локального запуска.
// Повторяет атомарность SQL-репозиториев: create-if-absent и compare-and-set
// выполняются под одной блокировкой.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/attendance_bot/internal/model"
)

type lessonKey struct {
	templateID int64
	date       time.Time
}

type markKey struct {
	lessonID  int64
	studentID int64
}

type Store struct {
	mu sync.Mutex

	nextID int64

	directions map[int64]*model.Direction
	groups     map[int64]*model.Group
	subjects   map[int64]*model.Subject
	users      map[int64]*model.User
	students   map[int64]*model.Student
	teachers   map[int64]*model.Teacher
	templates  map[int64]*model.ScheduleTemplate
	lessons    map[int64]*model.Lesson
	byDate     map[lessonKey]int64
	marks      map[markKey]*model.Attendance
}

func New() *Store {
	return &Store{
		directions: make(map[int64]*model.Direction),
		groups:     make(map[int64]*model.Group),
		subjects:   make(map[int64]*model.Subject),
		users:      make(map[int64]*model.User),
		students:   make(map[int64]*model.Student),
		teachers:   make(map[int64]*model.Teacher),
		templates:  make(map[int64]*model.ScheduleTemplate),
		lessons:    make(map[int64]*model.Lesson),
		byDate:     make(map[lessonKey]int64),
		marks:      make(map[markKey]*model.Attendance),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Templates, Lessons, Attendance, Roster, Users и Catalog возвращают
// представления хранилища под интерфейсы сервисного слоя
func (s *Store) Templates() *Templates   { return &Templates{s} }
func (s *Store) Lessons() *Lessons       { return &Lessons{s} }
func (s *Store) Attendance() *Attendance { return &Attendance{s} }
func (s *Store) Roster() *Roster         { return &Roster{s} }
func (s *Store) Users() *Users           { return &Users{s} }
func (s *Store) Catalog() *Catalog       { return &Catalog{s} }

// ---- seed helpers ----

// AddUser добавляет пользователя
func (s *Store) AddUser(u model.User) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.id()
	}
	s.users[u.ID] = &u
	return cloneUser(&u)
}

// AddStudent добавляет студента
func (s *Store) AddStudent(st model.Student) *model.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID == 0 {
		st.ID = s.id()
	}
	s.students[st.ID] = &st
	c := st
	return &c
}

// AddTeacher добавляет преподавателя
func (s *Store) AddTeacher(t model.Teacher) *model.Teacher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.id()
	}
	s.teachers[t.ID] = &t
	c := t
	return &c
}

// AddTemplate добавляет шаблон расписания
func (s *Store) AddTemplate(t model.ScheduleTemplate) *model.ScheduleTemplate {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.id()
	}
	s.templates[t.ID] = &t
	return cloneTemplate(&t)
}

// SetTemplateActive включает или отключает шаблон
func (s *Store) SetTemplateActive(id int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.templates[id]; ok {
		t.IsActive = active
	}
}

// LessonCount количество занятий шаблона на дату; для проверок уникальности
func (s *Store) LessonCount(templateID int64, date time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.lessons {
		if l.TemplateID == templateID && l.Date.Equal(date) {
			n++
		}
	}
	return n
}

// ---- templates ----

type Templates struct{ s *Store }

func (r *Templates) Create(_ context.Context, tpl *model.ScheduleTemplate) error {
	if !tpl.Valid() {
		return fmt.Errorf("create schedule template: invalid day %d or time %s-%s", tpl.DayOfWeek, tpl.StartTime, tpl.EndTime)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tpl.ID = r.s.id()
	tpl.CreatedAt = time.Now()
	if sub, ok := r.s.subjects[tpl.SubjectID]; ok {
		tpl.SubjectName = sub.Name
	}
	if g, ok := r.s.groups[tpl.GroupID]; ok {
		tpl.GroupName = g.Name
	}
	r.s.templates[tpl.ID] = cloneTemplate(tpl)
	return nil
}

func (r *Templates) SetActive(_ context.Context, id int64, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.templates[id]
	if !ok {
		return fmt.Errorf("schedule template %d not found", id)
	}
	t.IsActive = active
	return nil
}

func (r *Templates) GetByID(_ context.Context, id int64) (*model.ScheduleTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.templates[id]
	if !ok {
		return nil, nil
	}
	return cloneTemplate(t), nil
}

func (r *Templates) ListStartingBetween(_ context.Context, weekday int, from, to model.TimeOfDay) ([]*model.ScheduleTemplate, error) {
	return r.filter(func(t *model.ScheduleTemplate) bool {
		m := t.StartTime.Minutes()
		return t.IsActive && t.DayOfWeek == weekday && m >= from.Minutes() && m <= to.Minutes()
	}), nil
}

func (r *Templates) ListActiveByWeekday(_ context.Context, weekday int) ([]*model.ScheduleTemplate, error) {
	return r.filter(func(t *model.ScheduleTemplate) bool {
		return t.IsActive && t.DayOfWeek == weekday
	}), nil
}

func (r *Templates) ListForGroup(_ context.Context, groupID int64, weekday int) ([]*model.ScheduleTemplate, error) {
	return r.filter(func(t *model.ScheduleTemplate) bool {
		return t.IsActive && t.GroupID == groupID && t.DayOfWeek == weekday
	}), nil
}

func (r *Templates) ListForTeacher(_ context.Context, teacherID int64, weekday int) ([]*model.ScheduleTemplate, error) {
	return r.filter(func(t *model.ScheduleTemplate) bool {
		return t.IsActive && t.IsTaughtBy(teacherID) && t.DayOfWeek == weekday
	}), nil
}

func (r *Templates) ListAll(_ context.Context, groupID int64) ([]*model.ScheduleTemplate, error) {
	out := r.filter(func(t *model.ScheduleTemplate) bool {
		return groupID == 0 || t.GroupID == groupID
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].DayOfWeek < out[j].DayOfWeek })
	return out, nil
}

func (r *Templates) filter(keep func(*model.ScheduleTemplate) bool) []*model.ScheduleTemplate {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.ScheduleTemplate
	for _, t := range r.s.templates {
		if keep(t) {
			out = append(out, cloneTemplate(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Minutes() == out[j].StartTime.Minutes() {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// ---- lessons ----

type Lessons struct{ s *Store }

func (r *Lessons) Ensure(_ context.Context, templateID int64, date time.Time) (*model.Lesson, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := lessonKey{templateID: templateID, date: date}
	if id, ok := r.s.byDate[key]; ok {
		return cloneLesson(r.s.lessons[id]), false, nil
	}
	l := &model.Lesson{
		ID:         r.s.id(),
		TemplateID: templateID,
		Date:       date,
		State:      model.LessonStatePending,
		CreatedAt:  time.Now(),
	}
	r.s.lessons[l.ID] = l
	r.s.byDate[key] = l.ID
	return cloneLesson(l), true, nil
}

func (r *Lessons) GetByID(_ context.Context, id int64) (*model.Lesson, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.lessons[id]
	if !ok {
		return nil, nil
	}
	return cloneLesson(l), nil
}

func (r *Lessons) Open(_ context.Context, id int64, actor model.Actor, at time.Time) (*model.Lesson, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.lessons[id]
	if !ok || l.State != model.LessonStatePending {
		return nil, nil
	}
	a := actor
	l.State = model.LessonStateOpen
	l.OpenedAt = &at
	l.OpenedBy = &a
	return cloneLesson(l), nil
}

func (r *Lessons) Close(_ context.Context, id int64, actor model.Actor, at time.Time) (*model.Lesson, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.lessons[id]
	if !ok || l.State != model.LessonStateOpen {
		return nil, nil
	}
	a := actor
	l.State = model.LessonStateClosed
	l.ClosedAt = &at
	l.ClosedBy = &a
	return cloneLesson(l), nil
}

func (r *Lessons) ListOpen(_ context.Context) ([]*model.Lesson, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Lesson
	for _, l := range r.s.lessons {
		if l.State == model.LessonStateOpen {
			out = append(out, cloneLesson(l))
		}
	}
	sortLessons(out)
	return out, nil
}

func (r *Lessons) ListForGroup(_ context.Context, groupID int64, from, to time.Time) ([]*model.Lesson, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Lesson
	for _, l := range r.s.lessons {
		t, ok := r.s.templates[l.TemplateID]
		if !ok || t.GroupID != groupID {
			continue
		}
		if l.Date.Before(from) || l.Date.After(to) {
			continue
		}
		out = append(out, cloneLesson(l))
	}
	sortLessons(out)
	return out, nil
}

// ---- attendance ----

type Attendance struct{ s *Store }

func (r *Attendance) InsertIfAbsent(_ context.Context, mark *model.Attendance, state model.LessonState) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.lessons[mark.LessonID]
	if !ok || l.State != state {
		return false, nil
	}
	key := markKey{lessonID: mark.LessonID, studentID: mark.StudentID}
	if _, exists := r.s.marks[key]; exists {
		return false, nil
	}
	mark.ID = r.s.id()
	c := *mark
	r.s.marks[key] = &c
	return true, nil
}

func (r *Attendance) Upsert(_ context.Context, mark *model.Attendance, state model.LessonState) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.lessons[mark.LessonID]
	if !ok || l.State != state {
		return false, nil
	}
	key := markKey{lessonID: mark.LessonID, studentID: mark.StudentID}
	if existing, exists := r.s.marks[key]; exists {
		mark.ID = existing.ID
	} else {
		mark.ID = r.s.id()
	}
	c := *mark
	r.s.marks[key] = &c
	return true, nil
}

func (r *Attendance) Get(_ context.Context, lessonID, studentID int64) (*model.Attendance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.marks[markKey{lessonID: lessonID, studentID: studentID}]
	if !ok {
		return nil, nil
	}
	c := *m
	return &c, nil
}

func (r *Attendance) ListByLesson(_ context.Context, lessonID int64) ([]*model.Attendance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Attendance
	for k, m := range r.s.marks {
		if k.lessonID == lessonID {
			c := *m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (r *Attendance) ListByStudent(_ context.Context, studentID int64, lessonIDs []int64) ([]*model.Attendance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Attendance
	for _, id := range lessonIDs {
		if m, ok := r.s.marks[markKey{lessonID: id, studentID: studentID}]; ok {
			c := *m
			out = append(out, &c)
		}
	}
	return out, nil
}

// ---- roster ----

type Roster struct{ s *Store }

func (r *Roster) GetStudent(_ context.Context, id int64) (*model.Student, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.students[id]
	if !ok {
		return nil, nil
	}
	c := *st
	return &c, nil
}

func (r *Roster) GetStudentByUserID(_ context.Context, userID int64) (*model.Student, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, st := range r.s.students {
		if st.UserID == userID {
			c := *st
			return &c, nil
		}
	}
	return nil, nil
}

func (r *Roster) GetTeacherByUserID(_ context.Context, userID int64) (*model.Teacher, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.teachers {
		if t.UserID == userID {
			c := *t
			return &c, nil
		}
	}
	return nil, nil
}

func (r *Roster) ListStudentsByGroup(_ context.Context, groupID int64) ([]*model.Student, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Student
	for _, st := range r.s.students {
		if st.GroupID == groupID {
			c := *st
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateStudent привязывает пользователя к группе
func (r *Roster) CreateStudent(_ context.Context, student *model.Student) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, st := range r.s.students {
		if st.UserID == student.UserID {
			return fmt.Errorf("create student: user %d already enrolled", student.UserID)
		}
	}
	student.ID = r.s.id()
	c := *student
	r.s.students[c.ID] = &c
	return nil
}

// CreateTeacher регистрирует пользователя преподавателем
func (r *Roster) CreateTeacher(_ context.Context, teacher *model.Teacher) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.teachers {
		if t.UserID == teacher.UserID {
			return fmt.Errorf("create teacher: user %d already a teacher", teacher.UserID)
		}
	}
	teacher.ID = r.s.id()
	c := *teacher
	r.s.teachers[c.ID] = &c
	return nil
}

// ---- catalog ----

type Catalog struct{ s *Store }

func (r *Catalog) CreateDirection(_ context.Context, direction *model.Direction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.directions {
		if d.Name == direction.Name {
			return fmt.Errorf("direction %q already exists", direction.Name)
		}
	}
	direction.ID = r.s.id()
	direction.CreatedAt = time.Now()
	c := *direction
	r.s.directions[c.ID] = &c
	return nil
}

func (r *Catalog) GetDirection(_ context.Context, id int64) (*model.Direction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.directions[id]
	if !ok {
		return nil, nil
	}
	c := *d
	return &c, nil
}

func (r *Catalog) ListDirections(_ context.Context) ([]*model.Direction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.Direction, 0, len(r.s.directions))
	for _, d := range r.s.directions {
		c := *d
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Catalog) CreateGroup(_ context.Context, group *model.Group) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, g := range r.s.groups {
		if g.Name == group.Name {
			return fmt.Errorf("group %q already exists", group.Name)
		}
	}
	group.ID = r.s.id()
	group.CreatedAt = time.Now()
	c := *group
	r.s.groups[c.ID] = &c
	return nil
}

func (r *Catalog) CreateSubject(_ context.Context, subject *model.Subject) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sub := range r.s.subjects {
		if sub.Name == subject.Name {
			return fmt.Errorf("subject %q already exists", subject.Name)
		}
	}
	subject.ID = r.s.id()
	subject.CreatedAt = time.Now()
	c := *subject
	r.s.subjects[c.ID] = &c
	return nil
}

func (r *Catalog) GetGroup(_ context.Context, id int64) (*model.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.groups[id]
	if !ok {
		return nil, nil
	}
	c := *g
	return &c, nil
}

func (r *Catalog) GetGroupByName(_ context.Context, name string) (*model.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, g := range r.s.groups {
		if g.Name == name {
			c := *g
			return &c, nil
		}
	}
	return nil, nil
}

func (r *Catalog) GetSubjectByName(_ context.Context, name string) (*model.Subject, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sub := range r.s.subjects {
		if sub.Name == name {
			c := *sub
			return &c, nil
		}
	}
	return nil, nil
}

func (r *Catalog) ListGroups(_ context.Context, directionID int64) ([]*model.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.Group, 0, len(r.s.groups))
	for _, g := range r.s.groups {
		if directionID != 0 && (g.DirectionID == nil || *g.DirectionID != directionID) {
			continue
		}
		c := *g
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Catalog) Counts(_ context.Context) (*model.CatalogCounts, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := &model.CatalogCounts{
		Students:   len(r.s.students),
		Teachers:   len(r.s.teachers),
		Groups:     len(r.s.groups),
		Subjects:   len(r.s.subjects),
		Lessons:    len(r.s.lessons),
		Attendance: len(r.s.marks),
	}
	for _, t := range r.s.templates {
		if t.IsActive {
			counts.ActiveTemplates++
		}
	}
	for _, l := range r.s.lessons {
		if l.IsOpen() {
			counts.OpenLessons++
		}
	}
	return counts, nil
}

// ---- users ----

type Users struct{ s *Store }

func (r *Users) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user.ID = r.s.id()
	user.CreatedAt = time.Now()
	r.s.users[user.ID] = cloneUser(user)
	return nil
}

func (r *Users) Update(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.users[user.ID] = cloneUser(user)
	return nil
}

func (r *Users) GetByTelegramID(_ context.Context, telegramID int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.TelegramID == telegramID {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *Users) GetByID(_ context.Context, id int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return cloneUser(u), nil
}

func (r *Users) ListByRole(_ context.Context, role model.UserRole) ([]*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.User
	for _, u := range r.s.users {
		if u.Role == role && u.IsActive {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func cloneUser(u *model.User) *model.User {
	c := *u
	return &c
}

func cloneTemplate(t *model.ScheduleTemplate) *model.ScheduleTemplate {
	c := *t
	if t.TeacherID != nil {
		id := *t.TeacherID
		c.TeacherID = &id
	}
	return &c
}

func cloneLesson(l *model.Lesson) *model.Lesson {
	c := *l
	if l.OpenedAt != nil {
		t := *l.OpenedAt
		c.OpenedAt = &t
	}
	if l.ClosedAt != nil {
		t := *l.ClosedAt
		c.ClosedAt = &t
	}
	if l.OpenedBy != nil {
		a := *l.OpenedBy
		c.OpenedBy = &a
	}
	if l.ClosedBy != nil {
		a := *l.ClosedBy
		c.ClosedBy = &a
	}
	return &c
}

func sortLessons(ls []*model.Lesson) {
	sort.Slice(ls, func(i, j int) bool {
		if ls[i].Date.Equal(ls[j].Date) {
			return ls[i].ID < ls[j].ID
		}
		return ls[i].Date.Before(ls[j].Date)
	})
}
