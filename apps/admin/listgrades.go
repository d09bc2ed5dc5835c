package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/DYJJ/Academic-StarChain-sub001/core"
	"github.com/DYJJ/Academic-StarChain-sub001/core/grade"
)

func (cli *commandLine) listGrades(studentID, teacherID string, status grade.Status) error {
	filter := &grade.QueryFilter{
		StudentID: studentID,
		TeacherID: teacherID,
		Status:    status,
	}
	grades, err := cli.gradeRepo.QueryGrades(context.Background(), filter, []core.DBOrdering{{Field: "created_at", Ascending: true}})
	if err != nil {
		return err
	}

	color.Yellow("\n%d grade(s)", len(grades))
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Student", "Course", "Teacher", "Score", "Status", "Semester"})

	for _, g := range grades {
		table.Append([]string{
			g.ID,
			g.StudentID,
			g.CourseID,
			g.TeacherID,
			fmt.Sprintf("%g", g.Score),
			colorStatus(g.Status),
			g.Semester,
		})
	}
	table.Render()
	return nil
}

func colorStatus(status grade.Status) string {
	switch status {
	case grade.StatusVerified:
		return color.GreenString(string(status))
	case grade.StatusRejected:
		return color.RedString(string(status))
	default:
		return color.CyanString(string(status))
	}
}
